package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sunobot/wa-event-gateway/internal/domain/model"
)

// replierMiddleware decorates the Replier with timing and outcome logging,
// keeping observability out of the decision logic.
type replierMiddleware struct {
	next   Replier
	logger *slog.Logger
}

func NewReplierMiddleware(next Replier, logger *slog.Logger) Replier {
	return &replierMiddleware{next: next, logger: logger}
}

func (m *replierMiddleware) ProcessMessage(ctx context.Context, instance string, msg *model.Message) error {
	if msg == nil {
		return m.next.ProcessMessage(ctx, instance, msg)
	}

	start := time.Now()

	err := m.next.ProcessMessage(ctx, instance, msg)

	if err != nil {
		m.logger.Error("AUTO_REPLY_FAILED",
			"err", err,
			"instance", instance,
			"chat", msg.Key.RemoteJID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		m.logger.Debug("AUTO_REPLY_HANDLED",
			"instance", instance,
			"chat", msg.Key.RemoteJID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return err
}
