package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	lpmarshaller "github.com/sunobot/wa-event-gateway/internal/handler/marshaller/lp"
	"github.com/sunobot/wa-event-gateway/internal/service"
)

type PollHandler struct {
	deliverer service.Deliverer
	tokens    TokenValidator
	timeout   time.Duration
}

func NewPollHandler(deliverer service.Deliverer, tokens TokenValidator, timeout time.Duration) *PollHandler {
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	return &PollHandler{deliverer: deliverer, tokens: tokens, timeout: timeout}
}

// Poll is the long-polling fallback for clients that cannot hold an SSE
// stream. It parks the request until an event arrives or the timeout fires.
func (h *PollHandler) Poll(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	token := r.URL.Query().Get("token")
	if !h.tokens.Validate(token, instance) {
		writeError(w, http.StatusUnauthorized, "invalid or expired stream token")
		return
	}

	// Temporary subscription: the connector lives only for this request.
	conn, err := h.deliverer.Subscribe(r.Context(), instance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	// Leave the registry before closing: Close recycles the connector, and a
	// recycled handle still referenced by the cell would cross instances.
	defer func() {
		h.deliverer.Unsubscribe(instance, conn.GetID())
		conn.Close()
	}()

	var events []event.Eventer

	select {
	case <-r.Context().Done():
		return

	case <-time.After(h.timeout):
		w.WriteHeader(http.StatusNoContent)
		return

	case ev, ok := <-conn.Recv():
		if !ok {
			return
		}
		events = append(events, ev)

		// Drain whatever is already buffered so bursty instances cost
		// fewer round-trips.
	drainLoop:
		for range 15 {
			select {
			case nextEv := <-conn.Recv():
				events = append(events, nextEv)
			default:
				break drainLoop
			}
		}
	}

	data, err := lpmarshaller.MarshallEvents(events)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "marshal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
