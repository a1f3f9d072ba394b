package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent marks an inbound callback that cannot be routed at all:
// no instance to key the fan-out on, or no event discriminator. Callers log
// and reject; it must never crash the ingestion path.
var ErrMalformedEvent = errors.New("malformed provider event")

// Envelope is the raw callback body posted by the Evolution API. Data is kept
// opaque: the gateway forwards it verbatim and only the auto-reply listener
// ever looks inside message payloads.
type Envelope struct {
	Event       string          `json:"event"`
	Instance    string          `json:"instance"`
	Data        json.RawMessage `json:"data"`
	Destination string          `json:"destination,omitempty"`
	DateTime    string          `json:"date_time,omitempty"`
	Sender      string          `json:"sender,omitempty"`
	ServerURL   string          `json:"server_url,omitempty"`
	APIKey      string          `json:"apikey,omitempty"`
}

// kinds maps the provider's event discriminators onto the closed Kind set.
// Anything absent here falls through to KindOther and is still delivered,
// so new provider event types degrade gracefully instead of being dropped.
var kinds = map[string]Kind{
	"connection.update": KindConnectionUpdate,
	"qrcode.updated":    KindQRCodeUpdated,
	"messages.upsert":   KindMessageReceived,
	"send.message":      KindMessageSent,
	"contacts.upsert":   KindContactsChanged,
	"presence.update":   KindPresenceChanged,
	"chats.upsert":      KindChatsChanged,
	"groups.upsert":     KindGroupChanged,
}

// KindOf resolves a provider discriminator to its Kind, KindOther on miss.
func KindOf(discriminator string) Kind {
	if k, ok := kinds[discriminator]; ok {
		return k
	}
	return KindOther
}

// Normalize converts a raw provider envelope into a canonical event. The
// envelope must carry its own instance name; the webhook route parameter is
// never used to repair a payload that omits it.
func Normalize(env *Envelope) (*ProviderEvent, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}

	if env.Instance == "" {
		return nil, fmt.Errorf("%w: missing instance", ErrMalformedEvent)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event discriminator", ErrMalformedEvent)
	}

	occurredAt := time.Now()
	if env.DateTime != "" {
		if ts, err := time.Parse(time.RFC3339, env.DateTime); err == nil {
			occurredAt = ts
		}
	}

	return newProviderEvent(KindOf(env.Event), env.Event, env.Instance, occurredAt, env.Data), nil
}
