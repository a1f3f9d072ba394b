package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
)

// UpstreamError carries the provider's own status and body back to the caller
// so proxy routes can relay them verbatim.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("evolution: upstream status %d", e.StatusCode)
}

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the Evolution API. All instance-scoped calls go through a
// shared circuit breaker: when the provider is down, callers fail fast
// instead of stacking up on its timeout.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger

	// stateCache absorbs the probe burst when many streams open at once;
	// entries expire quickly so status stays near-real-time.
	stateCache *expirable.LRU[string, json.RawMessage]
}

func New(cfg Config, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "evolution-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Second * 30,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 4xx is the caller's problem, not a sign the provider is down.
		// Only 5xx and transport failures count against the breaker.
		IsSuccessful: func(err error) bool {
			var upstream *UpstreamError
			if errors.As(err, &upstream) {
				return upstream.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("BREAKER_STATE_CHANGED", "name", name, "from", from.String(), "to", to.String())
		},
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		logger:     logger,
		stateCache: expirable.NewLRU[string, json.RawMessage](256, nil, time.Second*5),
	}
}

// do runs one provider request through the breaker and returns the raw
// response body. Provider errors (4xx/5xx) surface as *UpstreamError and do
// not count as breaker failures below 500.
func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("evolution: marshal request: %w", err)
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("evolution: build request: %w", err)
		}
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("evolution: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("evolution: read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: data}
		}

		return json.RawMessage(data), nil
	})
	if err != nil {
		return nil, err
	}

	return res.(json.RawMessage), nil
}

// CreateInstanceRequest mirrors the subset of the provider's create payload
// the gateway exposes.
type CreateInstanceRequest struct {
	InstanceName string         `json:"instanceName"`
	Token        string         `json:"token,omitempty"`
	QRCode       bool           `json:"qrcode"`
	Integration  string         `json:"integration,omitempty"`
	Webhook      *WebhookConfig `json:"webhook,omitempty"`
}

func (c *Client) CreateInstance(ctx context.Context, req CreateInstanceRequest) (json.RawMessage, error) {
	if req.Integration == "" {
		req.Integration = "WHATSAPP-BAILEYS"
	}
	return c.do(ctx, http.MethodPost, "/instance/create", req)
}

func (c *Client) FetchInstances(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/fetchInstances", nil)
}

// FetchInstance looks up a single instance by name. The provider answers with
// a 404 *UpstreamError when no such instance exists.
func (c *Client) FetchInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/fetchInstances?instanceName="+url.QueryEscape(instance), nil)
}

func (c *Client) ConnectInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/instance/connect/"+url.PathEscape(instance), nil)
}

func (c *Client) RestartInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, "/instance/restart/"+url.PathEscape(instance), nil)
}

func (c *Client) LogoutInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, "/instance/logout/"+url.PathEscape(instance), nil)
}

func (c *Client) DeleteInstance(ctx context.Context, instance string) (json.RawMessage, error) {
	c.stateCache.Remove(instance)
	return c.do(ctx, http.MethodDelete, "/instance/delete/"+url.PathEscape(instance), nil)
}

// ConnectionState reports whether the instance's WhatsApp session is open.
// Results are cached briefly; a thundering herd of new streams for the same
// instance costs one upstream call.
func (c *Client) ConnectionState(ctx context.Context, instance string) (json.RawMessage, error) {
	if cached, ok := c.stateCache.Get(instance); ok {
		return cached, nil
	}

	state, err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+url.PathEscape(instance), nil)
	if err != nil {
		return nil, err
	}

	c.stateCache.Add(instance, state)
	return state, nil
}

func (c *Client) SetPresence(ctx context.Context, instance, presence string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/instance/setPresence/"+url.PathEscape(instance), map[string]string{
		"presence": presence,
	})
}

// WebhookConfig is the provider-side webhook subscription for an instance.
type WebhookConfig struct {
	URL      string   `json:"url"`
	Enabled  bool     `json:"enabled"`
	Events   []string `json:"events,omitempty"`
	ByEvents bool     `json:"webhookByEvents,omitempty"`
}

func (c *Client) SetWebhook(ctx context.Context, instance string, cfg WebhookConfig) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/webhook/set/"+url.PathEscape(instance), map[string]any{
		"webhook": cfg,
	})
}

func (c *Client) GetWebhook(ctx context.Context, instance string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/webhook/find/"+url.PathEscape(instance), nil)
}

// SendText pushes an outbound text message. Satisfies service.TextSender.
func (c *Client) SendText(ctx context.Context, instance, number, text string) error {
	_, err := c.do(ctx, http.MethodPost, "/message/sendText/"+url.PathEscape(instance), map[string]any{
		"number": number,
		"text":   text,
	})
	return err
}

// SendMediaRequest mirrors the provider's media payload.
type SendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	MimeType  string `json:"mimetype,omitempty"`
	Caption   string `json:"caption,omitempty"`
	Media     string `json:"media"`
	FileName  string `json:"fileName,omitempty"`
}

func (c *Client) SendMedia(ctx context.Context, instance string, req SendMediaRequest) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/message/sendMedia/"+url.PathEscape(instance), req)
}
