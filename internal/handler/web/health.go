package web

import (
	"net/http"
	"time"

	"github.com/sunobot/wa-event-gateway/internal/domain/registry"
)

type HealthHandler struct {
	hub       registry.Hubber
	startedAt time.Time
}

func NewHealthHandler(hub registry.Hubber) *HealthHandler {
	return &HealthHandler{hub: hub, startedAt: time.Now()}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.hub.Stats()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().Format(time.RFC3339),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"instances":      stats.TotalInstances,
		"subscribers":    stats.TotalSubscribers,
	})
}
