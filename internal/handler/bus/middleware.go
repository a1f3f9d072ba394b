package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
	"github.com/sunobot/wa-event-gateway/internal/adapter/pubsub"
)

type ctxKey int

const traceIDKey ctxKey = iota

const metaTraceID = "trace_id"

// TraceIDFromContext returns the trace id stamped by TraceIDMiddleware, empty
// when the message never passed through it.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// TraceIDMiddleware assigns every message a trace id on first sight and
// carries an existing one through republish cycles (retry, poison).
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get(metaTraceID)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(metaTraceID, traceID)
		}

		msg.SetContext(context.WithValue(msg.Context(), traceIDKey, traceID))

		return h(msg)
	}
}

// LoggingMiddleware records one line per consumed message with the consuming
// handler, the instance the event belongs to and the handling latency.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("EVENT_CONSUMED",
				"handler", message.HandlerNameFromCtx(msg.Context()),
				"instance", msg.Metadata.Get(pubsub.MetaInstance),
				"type", msg.Metadata.Get(pubsub.MetaType),
				"trace_id", TraceIDFromContext(msg.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

// NewRetryMiddleware bounds redelivery of NACKed events. The auto-reply path
// is the only NACK source, so the backoff stays well inside the 30-second
// handler timeout: a provider or LLM blip gets three more chances within a
// few seconds, then the poison queue takes the message.
func NewRetryMiddleware() middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: time.Millisecond * 500,
		MaxInterval:     time.Second * 10,
		Multiplier:      2.0,
	}
}
