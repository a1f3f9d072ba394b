package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/infra/client/evolution"
	"golang.org/x/sync/errgroup"
)

// EvolutionAPI is the slice of the provider client the management routes
// need. The gateway is a thin proxy here: bodies pass through untouched.
type EvolutionAPI interface {
	CreateInstance(ctx context.Context, req evolution.CreateInstanceRequest) (json.RawMessage, error)
	FetchInstances(ctx context.Context) (json.RawMessage, error)
	FetchInstance(ctx context.Context, instance string) (json.RawMessage, error)
	ConnectInstance(ctx context.Context, instance string) (json.RawMessage, error)
	RestartInstance(ctx context.Context, instance string) (json.RawMessage, error)
	LogoutInstance(ctx context.Context, instance string) (json.RawMessage, error)
	DeleteInstance(ctx context.Context, instance string) (json.RawMessage, error)
	ConnectionState(ctx context.Context, instance string) (json.RawMessage, error)
	SetPresence(ctx context.Context, instance, presence string) (json.RawMessage, error)
	SetWebhook(ctx context.Context, instance string, cfg evolution.WebhookConfig) (json.RawMessage, error)
	GetWebhook(ctx context.Context, instance string) (json.RawMessage, error)
	SendMedia(ctx context.Context, instance string, req evolution.SendMediaRequest) (json.RawMessage, error)
}

type InstancesHandler struct {
	api    EvolutionAPI
	logger *slog.Logger
}

func NewInstancesHandler(api EvolutionAPI, logger *slog.Logger) *InstancesHandler {
	return &InstancesHandler{api: api, logger: logger}
}

func (h *InstancesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req evolution.CreateInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.InstanceName == "" {
		writeError(w, http.StatusBadRequest, "instanceName is required")
		return
	}
	h.relay(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.api.CreateInstance(ctx, req)
	})
}

func (h *InstancesHandler) List(w http.ResponseWriter, r *http.Request) {
	h.relay(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.api.FetchInstances(ctx)
	})
}

func (h *InstancesHandler) Connect(w http.ResponseWriter, r *http.Request) {
	h.relayInstance(w, r, h.api.ConnectInstance)
}

func (h *InstancesHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.relayInstance(w, r, h.api.RestartInstance)
}

func (h *InstancesHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.relayInstance(w, r, h.api.LogoutInstance)
}

func (h *InstancesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.relayInstance(w, r, h.api.DeleteInstance)
}

func (h *InstancesHandler) ConnectionState(w http.ResponseWriter, r *http.Request) {
	h.relayInstance(w, r, h.api.ConnectionState)
}

func (h *InstancesHandler) SetPresence(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Presence string `json:"presence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Presence == "" {
		writeError(w, http.StatusBadRequest, "presence is required")
		return
	}
	instance := chi.URLParam(r, "instance")
	h.relay(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.api.SetPresence(ctx, instance, body.Presence)
	})
}

func (h *InstancesHandler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	h.relayInstance(w, r, h.api.GetWebhook)
}

func (h *InstancesHandler) SetWebhook(w http.ResponseWriter, r *http.Request) {
	var cfg evolution.WebhookConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if cfg.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	instance := chi.URLParam(r, "instance")
	h.relay(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.api.SetWebhook(ctx, instance, cfg)
	})
}

// SendMedia relays an outbound media message. Text sends stay internal to the
// auto-reply pipeline; media has no generator, so it is exposed as a proxy.
func (h *InstancesHandler) SendMedia(w http.ResponseWriter, r *http.Request) {
	var req evolution.SendMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Number == "" || req.Media == "" {
		writeError(w, http.StatusBadRequest, "number and media are required")
		return
	}
	instance := chi.URLParam(r, "instance")
	h.relay(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return h.api.SendMedia(ctx, instance, req)
	})
}

type instanceOverview struct {
	Name    string          `json:"name"`
	State   json.RawMessage `json:"state,omitempty"`
	Webhook json.RawMessage `json:"webhook,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Overview reports one instance's session state and webhook subscription,
// fetched concurrently. Partial upstream failures annotate the entry instead
// of failing the call.
func (h *InstancesHandler) Overview(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")
	writeJSON(w, http.StatusOK, h.overview(r.Context(), instance))
}

// ListOverview does the same for every known instance, bounded concurrency.
func (h *InstancesHandler) ListOverview(w http.ResponseWriter, r *http.Request) {
	raw, err := h.api.FetchInstances(r.Context())
	if err != nil {
		h.writeUpstream(w, err)
		return
	}

	names := instanceNames(raw)
	overviews := make([]instanceOverview, len(names))

	g, gCtx := errgroup.WithContext(r.Context())
	g.SetLimit(8)

	for i, name := range names {
		g.Go(func() error {
			overviews[i] = h.overview(gCtx, name)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"instances": overviews})
}

func (h *InstancesHandler) overview(ctx context.Context, instance string) instanceOverview {
	entry := instanceOverview{Name: instance}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := h.api.ConnectionState(gCtx, instance)
		if err != nil {
			return err
		}
		entry.State = state
		return nil
	})
	g.Go(func() error {
		webhook, err := h.api.GetWebhook(gCtx, instance)
		if err != nil {
			return err
		}
		entry.Webhook = webhook
		return nil
	})

	if err := g.Wait(); err != nil {
		entry.Error = err.Error()
	}
	return entry
}

// instanceNames tolerates both provider list shapes: flat objects with a
// "name" field (v2) and wrapped {"instance":{"instanceName":...}} (v1).
func instanceNames(raw json.RawMessage) []string {
	var flat []struct {
		Name     string `json:"name"`
		Instance struct {
			InstanceName string `json:"instanceName"`
		} `json:"instance"`
	}
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil
	}

	names := make([]string, 0, len(flat))
	for _, entry := range flat {
		switch {
		case entry.Name != "":
			names = append(names, entry.Name)
		case entry.Instance.InstanceName != "":
			names = append(names, entry.Instance.InstanceName)
		}
	}
	return names
}

func (h *InstancesHandler) relayInstance(w http.ResponseWriter, r *http.Request, call func(context.Context, string) (json.RawMessage, error)) {
	instance := chi.URLParam(r, "instance")
	h.relay(w, r, func(ctx context.Context) (json.RawMessage, error) {
		return call(ctx, instance)
	})
}

func (h *InstancesHandler) relay(w http.ResponseWriter, r *http.Request, call func(context.Context) (json.RawMessage, error)) {
	body, err := call(r.Context())
	if err != nil {
		h.writeUpstream(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeUpstream relays provider errors verbatim and masks everything else as
// a bad gateway.
func (h *InstancesHandler) writeUpstream(w http.ResponseWriter, err error) {
	var upstream *evolution.UpstreamError
	if errors.As(err, &upstream) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(upstream.StatusCode)
		_, _ = w.Write(upstream.Body)
		return
	}

	h.logger.Error("UPSTREAM_CALL_FAILED", "err", err)
	writeError(w, http.StatusBadGateway, "provider unavailable")
}
