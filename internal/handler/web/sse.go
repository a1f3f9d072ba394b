package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	ssemarshaller "github.com/sunobot/wa-event-gateway/internal/handler/marshaller/sse"
	"github.com/sunobot/wa-event-gateway/internal/service"
)

// TokenValidator checks a capability token against the instance the stream
// asks for. Implemented by service.TokenStore.
type TokenValidator interface {
	Validate(token, instance string) bool
}

// StateProber fetches the provider-side session state for the post-handshake
// status event. Implemented by the evolution client.
type StateProber interface {
	ConnectionState(ctx context.Context, instance string) (json.RawMessage, error)
}

type SSEHandler struct {
	deliverer service.Deliverer
	tokens    TokenValidator
	prober    StateProber
	heartbeat time.Duration
	logger    *slog.Logger
}

func NewSSEHandler(deliverer service.Deliverer, tokens TokenValidator, prober StateProber, heartbeat time.Duration, logger *slog.Logger) *SSEHandler {
	if heartbeat <= 0 {
		heartbeat = time.Second * 30
	}
	return &SSEHandler{
		deliverer: deliverer,
		tokens:    tokens,
		prober:    prober,
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// Stream serves one SSE connection for one instance until the client leaves.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	token := r.URL.Query().Get("token")
	if !h.tokens.Validate(token, instance) {
		writeError(w, http.StatusUnauthorized, "invalid or expired stream token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by connection")
		return
	}

	// 1. SUBSCRIBE BEFORE THE FIRST BYTE
	// Registration happens before the handshake event so nothing published
	// in between is lost.
	conn, err := h.deliverer.Subscribe(r.Context(), instance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	// Cleanup order matters: leave the registry first, close the handle
	// last, so no broadcast ever races a recycled connector.
	defer func() {
		h.deliverer.Unsubscribe(instance, conn.GetID())
		conn.Close()
		h.logger.Info("SSE_CLOSED",
			"instance", instance,
			"conn_id", conn.GetID(),
			"connected_ms", time.Since(conn.GetRegisteredAt()).Milliseconds())
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// 2. HANDSHAKE EVENT
	h.writeSystemEvent(w, event.NewSystemEvent(instance, event.KindConnectionEstablished, event.PriorityHigh, map[string]any{
		"message":   "SSE connection established",
		"timestamp": time.Now().Format(time.RFC3339),
	}))
	flusher.Flush()

	h.logger.Info("SSE_OPENED", "instance", instance, "conn_id", conn.GetID())

	// 3. SNAPSHOT PROBE
	// Advisory only: the stream stays up either way.
	if state, err := h.prober.ConnectionState(r.Context(), instance); err != nil {
		h.writeSystemEvent(w, event.NewSystemEvent(instance, event.KindConnectionError, event.PriorityNormal, map[string]any{
			"message": "failed to fetch connection state",
		}))
	} else {
		h.writeSystemEvent(w, event.NewSystemEvent(instance, event.KindConnectionStatus, event.PriorityNormal, map[string]any{
			"state": state,
		}))
	}
	flusher.Flush()

	// 4. MAIN PUMP LOOP
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-conn.Done():
			return

		case <-ticker.C:
			if _, err := w.Write(ssemarshaller.Heartbeat()); err != nil {
				return
			}
			flusher.Flush()

		case ev, ok := <-conn.Recv():
			if !ok {
				return
			}

			data, err := ssemarshaller.MarshalEvent(ev)
			if err != nil {
				h.logger.Error("SSE_MARSHAL_FAILED", "err", err, "instance", instance)
				continue
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *SSEHandler) writeSystemEvent(w http.ResponseWriter, ev event.Eventer) {
	data, err := ssemarshaller.MarshalEvent(ev)
	if err != nil {
		h.logger.Error("SSE_MARSHAL_FAILED", "err", err, "type", ev.GetType())
		return
	}
	_, _ = w.Write(data)
}
