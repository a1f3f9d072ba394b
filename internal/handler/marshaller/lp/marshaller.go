// Package lpmarshaller encodes event batches for the long-poll fallback.
package lpmarshaller

import (
	"encoding/json"

	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	ssemarshaller "github.com/sunobot/wa-event-gateway/internal/handler/marshaller/sse"
)

// MarshallEvents renders a drained batch as a JSON array of the same frame
// objects the SSE stream emits, so clients share one decoder.
func MarshallEvents(events []event.Eventer) ([]byte, error) {
	frames := make([]ssemarshaller.Frame, 0, len(events))
	for _, ev := range events {
		frames = append(frames, ssemarshaller.BuildFrame(ev))
	}
	return json.Marshal(frames)
}
