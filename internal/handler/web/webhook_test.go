package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
)

type fakeDispatcher struct {
	published []event.Eventer
	err       error
}

func (f *fakeDispatcher) Publish(_ context.Context, ev event.Eventer) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeDispatcher) Publisher() message.Publisher { return nil }

func newWebhookServer(t *testing.T, dispatcher *fakeDispatcher) *httptest.Server {
	t.Helper()
	h := NewWebhookHandler(dispatcher, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Get("/webhook", h.Describe)
	r.Post("/webhook", h.Receive)
	r.Get("/webhook/{instance}", h.Describe)
	r.Post("/webhook/{instance}", h.Receive)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestWebhookAcceptsKnownEvent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv := newWebhookServer(t, dispatcher)

	resp, body := postJSON(t, srv.URL+"/webhook/acct-1",
		`{"event":"messages.upsert","instance":"acct-1","data":{"key":{"id":"A"}}}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if body["timestamp"] == nil {
		t.Errorf("missing timestamp")
	}
	if len(dispatcher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(dispatcher.published))
	}
	if got := dispatcher.published[0].GetKind(); got != event.KindMessageReceived {
		t.Errorf("kind = %v", got)
	}
}

func TestWebhookAcceptsUnknownEventType(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv := newWebhookServer(t, dispatcher)

	resp, _ := postJSON(t, srv.URL+"/webhook/acct-1",
		`{"event":"labels.edit","instance":"acct-1","data":{"weird":true}}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unknown event type", resp.StatusCode)
	}
	if len(dispatcher.published) != 1 {
		t.Fatalf("published %d events, want 1", len(dispatcher.published))
	}
	if got := dispatcher.published[0].GetType(); got != "labels.edit" {
		t.Errorf("type = %q, want verbatim discriminator", got)
	}
}

func TestWebhookRejectsMissingInstance(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv := newWebhookServer(t, dispatcher)

	resp, body := postJSON(t, srv.URL+"/webhook",
		`{"event":"messages.upsert","data":{}}`)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["message"] == nil || body["error"] == nil {
		t.Errorf("error body incomplete: %v", body)
	}
	if len(dispatcher.published) != 0 {
		t.Errorf("published %d events, want 0", len(dispatcher.published))
	}
}

func TestWebhookRejectsBodyMissingInstance(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv := newWebhookServer(t, dispatcher)

	// The route names an instance, but the envelope must carry its own.
	resp, body := postJSON(t, srv.URL+"/webhook/acct-1",
		`{"event":"messages.upsert","data":{}}`)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for payload missing instance", resp.StatusCode)
	}
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if len(dispatcher.published) != 0 {
		t.Errorf("published %d events, want 0", len(dispatcher.published))
	}
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	srv := newWebhookServer(t, dispatcher)

	resp, _ := postJSON(t, srv.URL+"/webhook/acct-1", `{not json`)

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestWebhookDescribe(t *testing.T) {
	srv := newWebhookServer(t, &fakeDispatcher{})

	resp, err := http.Get(srv.URL + "/webhook/acct-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"message", "url", "methods", "timestamp"} {
		if body[field] == nil {
			t.Errorf("missing field %q", field)
		}
	}
}
