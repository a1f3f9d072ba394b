package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sunobot/wa-event-gateway/infra/client/evolution"
)

// defaultWebhookEvents is the subscription set pre-wired onto the bootstrap
// instance so its traffic lands on this gateway's webhook route.
var defaultWebhookEvents = []string{
	"APPLICATION_STARTUP",
	"SEND_MESSAGE",
	"REMOVE_INSTANCE",
	"QRCODE_UPDATED",
	"MESSAGES_UPSERT",
	"MESSAGES_UPDATE",
	"MESSAGES_SET",
	"LOGOUT_INSTANCE",
	"CONNECTION_UPDATE",
	"PRESENCE_UPDATE",
}

// MeHandler serves the single-user bootstrap: fetch the default instance,
// creating it with a webhook subscription on first contact.
type MeHandler struct {
	api             EvolutionAPI
	defaultInstance string
	baseURL         string
	logger          *slog.Logger
}

func NewMeHandler(api EvolutionAPI, defaultInstance, baseURL string, logger *slog.Logger) *MeHandler {
	return &MeHandler{
		api:             api,
		defaultInstance: defaultInstance,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		logger:          logger,
	}
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	instance, err := h.fetchOrCreate(r.Context())
	if err != nil {
		var upstream *evolution.UpstreamError
		if errors.As(err, &upstream) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(upstream.StatusCode)
			_, _ = w.Write(upstream.Body)
			return
		}
		h.logger.Error("ME_BOOTSTRAP_FAILED", "err", err, "instance", h.defaultInstance)
		writeError(w, http.StatusBadGateway, "provider unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		// Single-tenant deployment: the user identity is a fixed stub until
		// real accounts exist.
		"user": map[string]string{
			"id":    "user-123",
			"name":  "Usuário Padrão",
			"email": "usuario@exemplo.com",
		},
		"instance": instance,
	})
}

func (h *MeHandler) fetchOrCreate(ctx context.Context) (json.RawMessage, error) {
	raw, err := h.api.FetchInstance(ctx, h.defaultInstance)
	if err == nil {
		return firstInstance(raw), nil
	}

	var upstream *evolution.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusNotFound {
		return nil, err
	}

	h.logger.Info("DEFAULT_INSTANCE_MISSING: creating", "instance", h.defaultInstance)

	_, err = h.api.CreateInstance(ctx, evolution.CreateInstanceRequest{
		InstanceName: h.defaultInstance,
		Integration:  "WHATSAPP-BAILEYS",
		Webhook: &evolution.WebhookConfig{
			URL:     h.baseURL + "/webhook/" + h.defaultInstance,
			Enabled: true,
			Events:  defaultWebhookEvents,
		},
	})
	if err != nil {
		return nil, err
	}

	raw, err = h.api.FetchInstance(ctx, h.defaultInstance)
	if err != nil {
		return nil, err
	}
	return firstInstance(raw), nil
}

// firstInstance unwraps the provider's list-shaped lookup response down to
// the single instance object.
func firstInstance(raw json.RawMessage) json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return json.RawMessage("null")
		}
		return list[0]
	}
	return raw
}
