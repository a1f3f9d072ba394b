package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/internal/adapter/pubsub"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

type WebhookHandler struct {
	dispatcher pubsub.EventDispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(dispatcher pubsub.EventDispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, logger: logger}
}

// Receive ingests one provider envelope. The provider retries on non-2xx, so
// the split matters: an envelope missing its instance or event discriminator
// is a 500 (retry may carry a fixed one), while junk inside a well-addressed
// envelope is acked and delivered as-is. The instance must come from the
// body; the route parameter never repairs it.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	routeInstance := chi.URLParam(r, "instance")

	var env event.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
		writeWebhookError(w, "invalid JSON body")
		return
	}

	ev, err := event.Normalize(&env)
	if err != nil {
		if errors.Is(err, event.ErrMalformedEvent) {
			h.logger.Warn("WEBHOOK_REJECTED", "err", err, "route_instance", routeInstance)
			metrics.WebhooksReceived.WithLabelValues("malformed").Inc()
			writeWebhookError(w, err.Error())
			return
		}
		metrics.WebhooksReceived.WithLabelValues("error").Inc()
		writeWebhookError(w, "failed to process event")
		return
	}

	if err := h.dispatcher.Publish(r.Context(), ev); err != nil {
		h.logger.Error("WEBHOOK_PUBLISH_FAILED", "err", err, "instance", ev.GetInstance())
		metrics.WebhooksReceived.WithLabelValues("error").Inc()
		writeWebhookError(w, "failed to process event")
		return
	}

	metrics.WebhooksReceived.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Event received",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Describe answers provider health probes against the webhook URL.
func (h *WebhookHandler) Describe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Webhook endpoint active",
		"url":       r.URL.Path,
		"methods":   []string{http.MethodGet, http.MethodPost},
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeWebhookError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"error":   "Internal Server Error",
		"message": message,
	})
}
