package evolution

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sunobot/wa-event-gateway/internal/adapter/pubsub"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
)

const socketReconnectDelay = time.Second * 5

// SocketConsumer maintains a websocket to the provider's global event socket
// and feeds whatever arrives into the same bus the webhook path uses. It is
// an alternative ingest path for deployments where the provider cannot reach
// the gateway over HTTP.
type SocketConsumer struct {
	baseURL    string
	apiKey     string
	dispatcher pubsub.EventDispatcher
	logger     *slog.Logger
}

func NewSocketConsumer(baseURL, apiKey string, dispatcher pubsub.EventDispatcher, logger *slog.Logger) *SocketConsumer {
	return &SocketConsumer{
		baseURL:    baseURL,
		apiKey:     apiKey,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run dials and consumes until ctx is cancelled, reconnecting on any failure.
func (s *SocketConsumer) Run(ctx context.Context) {
	target, err := s.socketURL()
	if err != nil {
		s.logger.Error("SOCKET_URL_INVALID", "err", err, "base_url", s.baseURL)
		return
	}

	for {
		if err := s.consume(ctx, target); err != nil {
			s.logger.Warn("SOCKET_DISCONNECTED", "err", err, "retry_in", socketReconnectDelay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(socketReconnectDelay):
		}
	}
}

func (s *SocketConsumer) consume(ctx context.Context, target string) error {
	header := map[string][]string{"apikey": {s.apiKey}}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.Info("SOCKET_CONNECTED", "url", target)

	// Reads unblock on ctx cancellation via close.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var env event.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}

		ev, err := event.Normalize(&env)
		if err != nil {
			s.logger.Warn("SOCKET_EVENT_SKIPPED", "err", err)
			continue
		}

		if err := s.dispatcher.Publish(ctx, ev); err != nil {
			s.logger.Error("SOCKET_PUBLISH_FAILED", "err", err, "instance", ev.GetInstance())
		}
	}
}

func (s *SocketConsumer) socketURL() (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/events"

	return u.String(), nil
}
