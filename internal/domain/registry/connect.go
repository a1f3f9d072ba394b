package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the handle a stream handler owns for its lifetime. The
// registry keeps only a non-owning reference; delivery happens through Send
// and the handler pumps Recv onto the wire.
type Connector interface {
	GetID() uuid.UUID
	GetInstance() string
	GetRegisteredAt() time.Time
	Send(ev event.Eventer, timeout time.Duration) bool
	Recv() <-chan event.Eventer
	// Done fires when the connector is closed, whichever side closed it.
	Done() <-chan struct{}
	IsClosed() bool
	Close()
}

// [CONNECT] Concrete implementation, unexported to force interface usage.
type connect struct {
	id           uuid.UUID
	instance     string
	registeredAt time.Time
	ctx          context.Context
	cancelFn     context.CancelFunc
	sendCh       chan event.Eventer
	closeOnce    sync.Once
	droppedCount uint64 // atomic
}

// [POOL] Connectors churn with every reconnect; reuse them to cut GC pressure.
var connectPool = sync.Pool{
	New: func() any {
		return &connect{}
	},
}

func NewConnector(ctx context.Context, instance string, bufferSize int) Connector {
	c := connectPool.Get().(*connect)
	c.reset(ctx, instance, bufferSize)
	return c
}

// reset wipes stale pooled state with a struct literal, which also rearms the
// sync.Once close guard.
func (c *connect) reset(ctx context.Context, instance string, bufferSize int) {
	childCtx, cancel := context.WithCancel(ctx)

	*c = connect{
		id:           uuid.New(),
		instance:     instance,
		registeredAt: time.Now(),
		ctx:          childCtx,
		cancelFn:     cancel,
		sendCh:       make(chan event.Eventer, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID           { return c.id }
func (c *connect) GetInstance() string        { return c.instance }
func (c *connect) GetRegisteredAt() time.Time { return c.registeredAt }
func (c *connect) Recv() <-chan event.Eventer { return c.sendCh }
func (c *connect) Done() <-chan struct{}      { return c.ctx.Done() }
func (c *connect) IsClosed() bool             { return c.ctx.Err() != nil }

// Send attempts to push an event into the subscriber's buffer. It waits up to
// timeout for space so transient jitter does not shed events, then falls back
// to priority-based eviction.
func (c *connect) Send(ev event.Eventer, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case <-c.ctx.Done():
		return false
	case c.sendCh <- ev:
		return true
	case <-ctx.Done():
		return c.handleBackpressure(ev)
	}
}

// handleBackpressure manages a saturated buffer by trading one queued
// low-priority event for a higher-priority newcomer. Everything else is shed.
func (c *connect) handleBackpressure(ev event.Eventer) bool {
	if ev.GetPriority() <= event.PriorityLow {
		c.drop()
		return false
	}

	select {
	case oldEv := <-c.sendCh:
		if oldEv.GetPriority() < ev.GetPriority() {
			select {
			case c.sendCh <- ev:
				c.drop() // the evicted event counts as dropped
				return true
			default:
			}
		} else {
			// The queued event outranks the newcomer; best effort put-back.
			select {
			case c.sendCh <- oldEv:
			default:
			}
		}
	default:
	}

	c.drop()
	return false
}

func (c *connect) drop() {
	atomic.AddUint64(&c.droppedCount, 1)
	metrics.EventsDropped.Inc()
}

// Close cancels the connector and recycles it. Only the owning stream handler
// may call it, and only after the registry no longer references the handle;
// pending Sends observe the cancelled context. sendCh is deliberately left
// open so a racing Send can never panic on a closed channel.
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
		connectPool.Put(c)
	})
}
