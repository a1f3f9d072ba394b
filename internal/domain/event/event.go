package event

import "time"

type Kind int16

const (
	KindConnectionUpdate Kind = iota + 1 // [PROVIDER]
	KindQRCodeUpdated
	KindMessageReceived
	KindMessageSent
	KindContactsChanged
	KindPresenceChanged
	KindChatsChanged
	KindGroupChanged
	KindConnectionEstablished // [SYNTHETIC]
	KindConnectionStatus
	KindConnectionError
	KindOther
)

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() Kind
	// GetType returns the wire discriminator emitted to stream clients.
	// For provider events this is the original Evolution API event name.
	GetType() string
	GetInstance() string
	GetPriority() Priority
	GetOccurredAt() time.Time
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// wireTypes maps synthetic kinds to their stream discriminators. Provider
// kinds carry the discriminator they arrived with.
var wireTypes = map[Kind]string{
	KindConnectionEstablished: "connection.established",
	KindConnectionStatus:      "connection.status",
	KindConnectionError:       "connection.error",
}

func (k Kind) WireType() string {
	return wireTypes[k]
}
