// Package ssemarshaller encodes events into server-sent-event wire frames.
package ssemarshaller

import (
	"encoding/json"
	"time"

	"github.com/sunobot/wa-event-gateway/internal/domain/event"
)

// heartbeat is the comment frame that keeps intermediary proxies from timing
// out an idle stream. Comments are invisible to SSE client libraries.
var heartbeat = []byte(": heartbeat\n\n")

// Frame is the JSON object inside every data frame, the shape stream clients
// are written against.
type Frame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Instance  string `json:"instance"`
	Data      any    `json:"data"`
}

func Heartbeat() []byte {
	return heartbeat
}

// BuildFrame maps an event onto the client-facing frame object.
func BuildFrame(ev event.Eventer) Frame {
	return Frame{
		Type:      ev.GetType(),
		Timestamp: ev.GetOccurredAt().UTC().Format(time.RFC3339),
		Instance:  ev.GetInstance(),
		Data:      ev.GetPayload(),
	}
}

// MarshalEvent serializes an event as one `data: <json>\n\n` frame. The cached
// slot short-circuits repeat serialization when one event fans out to many
// subscribers; the bus listener populates it once before broadcast.
func MarshalEvent(ev event.Eventer) ([]byte, error) {
	if b, ok := ev.GetCached().([]byte); ok {
		return b, nil
	}

	body, err := json.Marshal(BuildFrame(ev))
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// CacheFrame pre-serializes the frame and parks it on the event.
func CacheFrame(ev event.Eventer) error {
	if _, ok := ev.GetCached().([]byte); ok {
		return nil
	}
	b, err := MarshalEvent(ev)
	if err != nil {
		return err
	}
	ev.SetCached(b)
	return nil
}
