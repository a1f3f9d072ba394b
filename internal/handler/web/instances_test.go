package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sunobot/wa-event-gateway/infra/client/evolution"
)

// fakeEvolutionAPI answers each call from canned responses and records what
// the handlers asked for.
type fakeEvolutionAPI struct {
	fetchInstanceResp json.RawMessage
	fetchInstanceErr  error
	createdReq        *evolution.CreateInstanceRequest
	createErr         error
	sendMediaInstance string
	sendMediaReq      *evolution.SendMediaRequest
	sendMediaErr      error
}

func (f *fakeEvolutionAPI) CreateInstance(_ context.Context, req evolution.CreateInstanceRequest) (json.RawMessage, error) {
	f.createdReq = &req
	if f.createErr != nil {
		return nil, f.createErr
	}
	// The instance exists from here on.
	f.fetchInstanceErr = nil
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) FetchInstances(context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeEvolutionAPI) FetchInstance(context.Context, string) (json.RawMessage, error) {
	if f.fetchInstanceErr != nil {
		return nil, f.fetchInstanceErr
	}
	return f.fetchInstanceResp, nil
}

func (f *fakeEvolutionAPI) ConnectInstance(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) RestartInstance(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) LogoutInstance(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) DeleteInstance(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) ConnectionState(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) SetPresence(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) SetWebhook(context.Context, string, evolution.WebhookConfig) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) GetWebhook(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (f *fakeEvolutionAPI) SendMedia(_ context.Context, instance string, req evolution.SendMediaRequest) (json.RawMessage, error) {
	f.sendMediaInstance = instance
	f.sendMediaReq = &req
	if f.sendMediaErr != nil {
		return nil, f.sendMediaErr
	}
	return json.RawMessage(`{"status":"PENDING"}`), nil
}

func newMeServer(t *testing.T, api *fakeEvolutionAPI) *httptest.Server {
	t.Helper()
	h := NewMeHandler(api, "acct-default", "http://gw.local:3333", slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Get("/me", h.Me)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestMeReturnsExistingInstance(t *testing.T) {
	api := &fakeEvolutionAPI{
		fetchInstanceResp: json.RawMessage(`[{"name":"acct-default","connectionStatus":"open"}]`),
	}
	srv := newMeServer(t, api)

	resp, body := getJSON(t, srv.URL+"/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if api.createdReq != nil {
		t.Fatal("existing instance must not be re-created")
	}

	inst, ok := body["instance"].(map[string]any)
	if !ok {
		t.Fatalf("instance = %v, want unwrapped object", body["instance"])
	}
	if inst["name"] != "acct-default" {
		t.Errorf("instance name = %v", inst["name"])
	}
	if body["user"] == nil {
		t.Error("user stub missing")
	}
}

func TestMeCreatesMissingInstanceWithWebhook(t *testing.T) {
	api := &fakeEvolutionAPI{
		fetchInstanceErr:  &evolution.UpstreamError{StatusCode: http.StatusNotFound, Body: []byte(`{}`)},
		fetchInstanceResp: json.RawMessage(`[{"name":"acct-default"}]`),
	}
	srv := newMeServer(t, api)

	resp, _ := getJSON(t, srv.URL+"/me")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after bootstrap", resp.StatusCode)
	}

	if api.createdReq == nil {
		t.Fatal("missing instance was not created")
	}
	if api.createdReq.InstanceName != "acct-default" {
		t.Errorf("created instance = %q", api.createdReq.InstanceName)
	}
	if api.createdReq.Webhook == nil {
		t.Fatal("bootstrap must pre-wire the webhook subscription")
	}
	if got := api.createdReq.Webhook.URL; got != "http://gw.local:3333/webhook/acct-default" {
		t.Errorf("webhook url = %q", got)
	}
	if len(api.createdReq.Webhook.Events) == 0 {
		t.Error("webhook subscription has no events")
	}
}

func TestMeRelaysUnexpectedUpstreamError(t *testing.T) {
	api := &fakeEvolutionAPI{
		fetchInstanceErr: &evolution.UpstreamError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"error":"nope"}`)},
	}
	srv := newMeServer(t, api)

	resp, _ := getJSON(t, srv.URL+"/me")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 relayed; a non-404 must not trigger creation", resp.StatusCode)
	}
	if api.createdReq != nil {
		t.Error("non-404 fetch failure must not create the instance")
	}
}

func newInstancesServer(t *testing.T, api *fakeEvolutionAPI) *httptest.Server {
	t.Helper()
	h := NewInstancesHandler(api, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Post("/instances/{instance}/message/media", h.SendMedia)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestSendMediaProxiesPayload(t *testing.T) {
	api := &fakeEvolutionAPI{}
	srv := newInstancesServer(t, api)

	resp, err := http.Post(srv.URL+"/instances/acct-1/message/media", "application/json",
		strings.NewReader(`{"number":"5511999990000","mediatype":"image","media":"aGVsbG8=","caption":"oi"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if api.sendMediaInstance != "acct-1" {
		t.Errorf("instance = %q", api.sendMediaInstance)
	}
	if api.sendMediaReq == nil || api.sendMediaReq.Number != "5511999990000" || api.sendMediaReq.Caption != "oi" {
		t.Errorf("relayed request = %+v", api.sendMediaReq)
	}
}

func TestSendMediaValidatesBody(t *testing.T) {
	api := &fakeEvolutionAPI{}
	srv := newInstancesServer(t, api)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing number", `{"media":"aGVsbG8="}`},
		{"missing media", `{"number":"5511999990000"}`},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/instances/acct-1/message/media", "application/json",
				strings.NewReader(c.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if api.sendMediaReq != nil {
				t.Error("invalid body reached the provider client")
			}
		})
	}
}
