package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*ProviderEvent)(nil)

// ProviderEvent is the canonical shape every inbound Evolution API callback is
// normalized into. It is immutable after construction; the cached slot only
// memoizes the serialized wire frame.
//
// The exported fields double as the transport encoding on the in-process bus,
// so an event survives a marshal/unmarshal round trip between the ingestion
// handler and the fan-out listeners.
type ProviderEvent struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Type       string          `json:"type"`
	Instance   string          `json:"instance"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`

	cached any
}

func (e *ProviderEvent) GetID() string             { return e.ID }
func (e *ProviderEvent) GetKind() Kind             { return e.Kind }
func (e *ProviderEvent) GetType() string           { return e.Type }
func (e *ProviderEvent) GetInstance() string       { return e.Instance }
func (e *ProviderEvent) GetOccurredAt() time.Time  { return e.OccurredAt }
func (e *ProviderEvent) GetPayload() any           { return e.Data }
func (e *ProviderEvent) GetCached() any            { return e.cached }
func (e *ProviderEvent) SetCached(v any)           { e.cached = v }

// GetPriority ranks provider events for backpressure shedding. Chat traffic
// and QR refreshes must win over presence noise when a subscriber stalls.
func (e *ProviderEvent) GetPriority() Priority {
	switch e.Kind {
	case KindMessageReceived, KindMessageSent, KindQRCodeUpdated, KindConnectionUpdate:
		return PriorityHigh
	case KindPresenceChanged:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func newProviderEvent(kind Kind, wireType, instance string, occurredAt time.Time, data json.RawMessage) *ProviderEvent {
	return &ProviderEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Type:       wireType,
		Instance:   instance,
		OccurredAt: occurredAt,
		Data:       data,
	}
}
