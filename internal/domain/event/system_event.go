package event

import (
	"time"

	"github.com/google/uuid"
)

var _ Eventer = (*SystemEvent)(nil)

// SystemEvent is the envelope for signals synthesized by the gateway itself:
// the stream handshake, snapshot probe results and probe failures. They never
// travel over the bus; the connection handler writes them straight onto its
// own stream.
type SystemEvent struct {
	id         string
	kind       Kind
	instance   string
	priority   Priority
	occurredAt time.Time
	payload    any
	cached     any
}

func (e *SystemEvent) GetID() string            { return e.id }
func (e *SystemEvent) GetKind() Kind            { return e.kind }
func (e *SystemEvent) GetType() string          { return e.kind.WireType() }
func (e *SystemEvent) GetInstance() string      { return e.instance }
func (e *SystemEvent) GetPriority() Priority    { return e.priority }
func (e *SystemEvent) GetOccurredAt() time.Time { return e.occurredAt }
func (e *SystemEvent) GetPayload() any          { return e.payload }
func (e *SystemEvent) GetCached() any           { return e.cached }
func (e *SystemEvent) SetCached(v any)          { e.cached = v }

// NewSystemEvent is a universal factory for creating any synthetic signal.
func NewSystemEvent(instance string, kind Kind, priority Priority, payload any) *SystemEvent {
	return &SystemEvent{
		id:         uuid.NewString(),
		kind:       kind,
		instance:   instance,
		priority:   priority,
		occurredAt: time.Now(),
		payload:    payload,
	}
}
