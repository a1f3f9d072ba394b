package bus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/sunobot/wa-event-gateway/internal/adapter/pubsub"
	"github.com/sunobot/wa-event-gateway/internal/domain/registry"
	"github.com/sunobot/wa-event-gateway/internal/service"
)

type EventHandler struct {
	hub        registry.Hubber
	logger     *slog.Logger
	replier    service.Replier
	dispatcher pubsub.EventDispatcher
}

func NewEventHandler(hub registry.Hubber, logger *slog.Logger, replier service.Replier, dispatcher pubsub.EventDispatcher) *EventHandler {
	return &EventHandler{hub, logger, replier, dispatcher}
}

// [REGISTRATION_PIPELINE]
// Each listener gets its own subscription on the event topic, so the
// broadcast path and the auto-reply path consume independently: a slow LLM
// round-trip never delays fan-out to connected streams.
func (h *EventHandler) RegisterHandlers(router *message.Router, sub message.Subscriber) error {
	poison, err := middleware.PoisonQueue(h.dispatcher.Publisher(), pubsub.TopicPoison)
	if err != nil {
		return fmt.Errorf("POISON_SETUP_FAILED: %w", err)
	}

	configs := []struct {
		name    string
		topic   string
		handler message.NoPublishHandlerFunc
	}{
		{"ON_EVENT_BROADCAST", pubsub.TopicEvents, Bind(h, h.OnEventBroadcast)},
		{"ON_MESSAGE_AUTOREPLY", pubsub.TopicEvents, Bind(h, h.OnMessageAutoReply)},
	}

	for _, c := range configs {
		router.AddConsumerHandler(c.name, c.topic, sub, c.handler).AddMiddleware(
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
			NewRetryMiddleware().Middleware,
			poison,
			middleware.NewThrottle(100, time.Second).Middleware,
			middleware.Timeout(time.Second*30),
		)
	}

	h.logger.Info("BUS_PIPELINE_READY", "topic", pubsub.TopicEvents)
	return nil
}
