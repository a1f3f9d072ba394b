package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireAPIKey(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireAPIKey("secret-key")(next)

	cases := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"apikey header", map[string]string{"apikey": "secret-key"}, http.StatusOK},
		{"bearer token", map[string]string{"Authorization": "Bearer secret-key"}, http.StatusOK},
		{"wrong key", map[string]string{"apikey": "nope"}, http.StatusUnauthorized},
		{"wrong bearer", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"no credentials", nil, http.StatusUnauthorized},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/instances", nil)
			for k, v := range c.header {
				req.Header.Set(k, v)
			}

			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			if rec.Code != c.want {
				t.Errorf("status = %d, want %d", rec.Code, c.want)
			}
		})
	}
}
