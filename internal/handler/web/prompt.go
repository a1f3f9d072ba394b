package web

import (
	"encoding/json"
	"net/http"

	"github.com/sunobot/wa-event-gateway/internal/service"
)

type PromptHandler struct {
	prompts *service.PromptStore
}

func NewPromptHandler(prompts *service.PromptStore) *PromptHandler {
	return &PromptHandler{prompts: prompts}
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"prompt": h.prompts.Get(),
	})
}

func (h *PromptHandler) Save(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.prompts.Save(body.Prompt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"prompt":  h.prompts.Get(),
	})
}
