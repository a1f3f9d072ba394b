package bus

import (
	"context"

	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	"github.com/sunobot/wa-event-gateway/internal/domain/model"
	ssemarshaller "github.com/sunobot/wa-event-gateway/internal/handler/marshaller/sse"
)

// [ON_EVENT_BROADCAST]
// Fans a normalized event out to every stream subscribed to its instance.
func (h *EventHandler) OnEventBroadcast(ctx context.Context, instance string, ev *event.ProviderEvent) error {
	if !h.hub.HasSubscribers(instance) {
		return nil // Nobody listening; the event evaporates.
	}

	// Marshal once here so every subscriber writes the same cached frame.
	if err := ssemarshaller.CacheFrame(ev); err != nil {
		h.logger.Error("FRAME_MARSHAL_FAILED", "err", err, "instance", instance, "type", ev.GetType())
		return nil // ACK: a frame that cannot marshal never will.
	}

	h.hub.Broadcast(ev)
	return nil
}

// [ON_MESSAGE_AUTOREPLY]
// Hands inbound texts to the replier. Errors NACK so transient LLM or
// provider failures are retried.
func (h *EventHandler) OnMessageAutoReply(ctx context.Context, instance string, ev *event.ProviderEvent) error {
	if ev.GetKind() != event.KindMessageReceived {
		return nil
	}

	msgs, err := model.ParseMessages(ev.Data)
	if err != nil {
		h.logger.Error("MESSAGE_PARSE_FAILED", "err", err, "instance", instance)
		return nil // ACK: malformed payloads never parse on retry either.
	}

	for _, msg := range msgs {
		if err := h.replier.ProcessMessage(ctx, instance, msg); err != nil {
			return err
		}
	}
	return nil
}
