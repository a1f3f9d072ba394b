package bus

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
)

func TestTraceIDMiddlewareStampsNewMessages(t *testing.T) {
	var seenInCtx string
	handler := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seenInCtx = TraceIDFromContext(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage("msg-1", nil)
	if _, err := handler(msg); err != nil {
		t.Fatalf("handler: %v", err)
	}

	stamped := msg.Metadata.Get(metaTraceID)
	if stamped == "" {
		t.Fatal("trace id not stamped on metadata")
	}
	if seenInCtx != stamped {
		t.Fatalf("context trace id = %q, metadata = %q", seenInCtx, stamped)
	}
}

func TestTraceIDMiddlewareKeepsExistingID(t *testing.T) {
	handler := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		return nil, nil
	})

	msg := message.NewMessage("msg-1", nil)
	msg.Metadata.Set(metaTraceID, "trace-from-retry")
	if _, err := handler(msg); err != nil {
		t.Fatalf("handler: %v", err)
	}

	if got := msg.Metadata.Get(metaTraceID); got != "trace-from-retry" {
		t.Fatalf("trace id = %q, want the one carried through republish", got)
	}
}

func TestTraceIDFromContextWithoutMiddleware(t *testing.T) {
	msg := message.NewMessage("msg-1", nil)
	if got := TraceIDFromContext(msg.Context()); got != "" {
		t.Fatalf("trace id = %q, want empty outside the pipeline", got)
	}
}
