package evolution

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL: srv.URL,
		APIKey:  "evo-key",
		Timeout: 2 * time.Second,
	}, slog.New(slog.DiscardHandler))
}

func TestClientSendsAuthHeaders(t *testing.T) {
	var gotAPIKey, gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})

	if _, err := c.FetchInstances(context.Background()); err != nil {
		t.Fatalf("FetchInstances: %v", err)
	}
	if gotAPIKey != "evo-key" {
		t.Errorf("apikey header = %q", gotAPIKey)
	}
	if gotAuth != "Bearer evo-key" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
}

func TestClientRelaysUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":404,"error":"Not Found"}`))
	})

	_, err := c.ConnectInstance(context.Background(), "ghost")

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if upstream.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", upstream.StatusCode)
	}
	if len(upstream.Body) == 0 {
		t.Errorf("body not relayed")
	}
}

func TestConnectionStateCached(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"instance":{"state":"open"}}`))
	})

	for range 5 {
		state, err := c.ConnectionState(context.Background(), "acct-1")
		if err != nil {
			t.Fatalf("ConnectionState: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(state, &decoded); err != nil {
			t.Fatalf("bad state payload: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("upstream called %d times, want 1 (cache)", got)
	}
}

func TestSendTextPostsPayload(t *testing.T) {
	var path string
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	if err := c.SendText(context.Background(), "acct-1", "5511999990000", "olá"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if path != "/message/sendText/acct-1" {
		t.Errorf("path = %q", path)
	}
	if body["number"] != "5511999990000" || body["text"] != "olá" {
		t.Errorf("payload = %v", body)
	}
}

func TestFetchInstanceQueriesByName(t *testing.T) {
	var path, name string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		name = r.URL.Query().Get("instanceName")
		w.Write([]byte(`[{"name":"acct 1"}]`))
	})

	if _, err := c.FetchInstance(context.Background(), "acct 1"); err != nil {
		t.Fatalf("FetchInstance: %v", err)
	}
	if path != "/instance/fetchInstances" {
		t.Errorf("path = %q", path)
	}
	if name != "acct 1" {
		t.Errorf("instanceName = %q, want query-escaped name decoded back", name)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int64
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for range 5 {
		if _, err := c.FetchInstances(context.Background()); err == nil {
			t.Fatalf("expected failure")
		}
	}

	before := calls.Load()
	if _, err := c.FetchInstances(context.Background()); err == nil {
		t.Fatalf("expected open breaker to fail fast")
	}
	if calls.Load() != before {
		t.Errorf("open breaker still hit upstream")
	}
}
