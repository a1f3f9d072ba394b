package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// TokenIssuer mints stream capability tokens. Implemented by
// service.TokenStore.
type TokenIssuer interface {
	Issue(instance string) (string, time.Duration, error)
}

type TokenHandler struct {
	tokens  TokenIssuer
	baseURL string
}

func NewTokenHandler(tokens TokenIssuer, baseURL string) *TokenHandler {
	return &TokenHandler{tokens: tokens, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Issue trades an API key (checked by middleware) for a short-lived token a
// browser EventSource can carry in its URL.
func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	instance := chi.URLParam(r, "instance")

	token, ttl, err := h.tokens.Issue(instance)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int(ttl.Seconds()),
		"sseUrl":    fmt.Sprintf("%s/instances/%s/events?token=%s", h.baseURL, instance, token),
	})
}
