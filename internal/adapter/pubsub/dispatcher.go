package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

const (
	// TopicEvents carries every normalized provider event. Both the broadcast
	// listener and the auto-reply listener consume it independently.
	TopicEvents = "wa.events"

	// TopicPoison collects messages that exhausted their retries.
	TopicPoison = "wa.events.poison"
)

// Message metadata keys, set on publish so middleware and handlers can route
// and log without decoding the payload.
const (
	MetaInstance = "instance"
	MetaType     = "type"
)

// EventDispatcher defines the high-level contract for outgoing events.
// This allows the webhook handler to stay agnostic of the transport
// implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev event.Eventer) error
	Publisher() message.Publisher
}

// eventDispatcher is the concrete implementation (private).
type eventDispatcher struct {
	publisher message.Publisher
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev event.Eventer) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(ev.GetID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetaInstance, ev.GetInstance())
	msg.Metadata.Set(MetaType, ev.GetType())

	if err := d.publisher.Publish(TopicEvents, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", TopicEvents, err)
	}

	metrics.EventsIngested.WithLabelValues(ev.GetType()).Inc()
	return nil
}

func (d *eventDispatcher) Publisher() message.Publisher {
	return d.publisher
}
