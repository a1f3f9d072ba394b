package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sunobot/wa-event-gateway/internal/domain/registry"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

// Deliverer is the primary interface for stream transports (SSE, long-poll).
type Deliverer interface {
	Subscribe(ctx context.Context, instance string) (registry.Connector, error)
	Unsubscribe(instance string, connID uuid.UUID)
}

type DeliveryService struct {
	hub        registry.Hubber
	bufferSize int
}

func NewDeliveryService(hub registry.Hubber, bufferSize int) *DeliveryService {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &DeliveryService{
		hub:        hub,
		bufferSize: bufferSize,
	}
}

// Subscribe creates a connector bound to the caller's context and attaches it
// to the instance cell. The returned handle is owned by the calling transport
// for the rest of the connection's life.
func (s *DeliveryService) Subscribe(ctx context.Context, instance string) (registry.Connector, error) {
	conn := registry.NewConnector(ctx, instance, s.bufferSize)
	s.hub.Register(conn)
	metrics.StreamsOpened.Inc()
	return conn, nil
}

// Unsubscribe detaches the connector. The registry tolerates repeats, so the
// peer-close and heartbeat-failure teardown paths may both call it.
func (s *DeliveryService) Unsubscribe(instance string, connID uuid.UUID) {
	s.hub.Unregister(instance, connID)
}
