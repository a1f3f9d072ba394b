package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	"github.com/sunobot/wa-event-gateway/internal/domain/model"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

// Hubber defines the gateway for subscriber session management and event
// routing. Broadcast returns false when nobody is listening or the instance
// mailbox overflowed; callers treat both as a documented no-op, not an error.
type Hubber interface {
	Broadcast(ev event.Eventer) bool
	Register(conn Connector)
	Unregister(instance string, connID uuid.UUID)
	HasSubscribers(instance string) bool
	Stats() model.HubStats
	Shutdown()
}

// Hub maps instance names to their delivery cells. sync.Map because the
// webhook path is read-heavy: cell lookups per event, mutations only on
// connect and disconnect.
type Hub struct {
	cells  sync.Map // map[string]*Cell
	config hubConfig

	janitorDone chan struct{}
	stopOnce    sync.Once
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config:      defaultHubConfig(),
		janitorDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.janitor()
	return h
}

func (h *Hub) HasSubscribers(instance string) bool {
	if val, ok := h.cells.Load(instance); ok {
		return val.(*Cell).Len() > 0
	}
	return false
}

// Broadcast routes an event to its instance cell. A miss means no subscriber
// set exists for the instance, which is not an error.
func (h *Hub) Broadcast(ev event.Eventer) bool {
	val, ok := h.cells.Load(ev.GetInstance())
	if !ok {
		return false
	}
	metrics.EventsBroadcast.Inc()
	return val.(*Cell).Push(ev)
}

// Register attaches a subscriber, lazily creating the instance cell. Safe
// under concurrent calls for the same or different instances.
func (h *Hub) Register(conn Connector) {
	instance := conn.GetInstance()

	for {
		val, loaded := h.cells.Load(instance)
		if !loaded {
			cell := NewCell(instance, h.config, func() { h.dropCell(instance) })
			if actual, raced := h.cells.LoadOrStore(instance, cell); raced {
				cell.Stop()
				val = actual
			} else {
				val = cell
			}
		}

		cell := val.(*Cell)
		cell.Attach(conn)

		// The janitor or a pruning pass may have stopped this cell between
		// Load and Attach. Re-check; a stopped cell no longer delivers.
		if _, present := h.cells.Load(instance); present {
			break
		}
		cell.Detach(conn.GetID())
	}

	metrics.SubscribersActive.Inc()
}

// Unregister removes one subscriber and reclaims the cell when its set
// becomes empty. Idempotent: unknown instance or connID is a no-op.
func (h *Hub) Unregister(instance string, connID uuid.UUID) {
	val, ok := h.cells.Load(instance)
	if !ok {
		return
	}
	cell := val.(*Cell)
	had := cell.Len()
	if cell.Detach(connID) {
		cell.Stop()
		h.cells.CompareAndDelete(instance, val)
	}
	if cell.Len() < had {
		metrics.SubscribersActive.Dec()
	}
}

// dropCell purges an instance cell that pruned its last dead session.
func (h *Hub) dropCell(instance string) {
	if val, ok := h.cells.Load(instance); ok {
		cell := val.(*Cell)
		if cell.Len() == 0 {
			cell.Stop()
			h.cells.CompareAndDelete(instance, val)
		}
	}
}

func (h *Hub) Stats() model.HubStats {
	var stats model.HubStats
	h.cells.Range(func(_, val any) bool {
		stats.TotalInstances++
		stats.TotalSubscribers += val.(*Cell).Len()
		return true
	})
	return stats
}

// janitor periodically reclaims cells that ended up session-less without
// going through Unregister.
func (h *Hub) janitor() {
	ticker := time.NewTicker(h.config.evictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.janitorDone:
			return
		case <-ticker.C:
			h.cells.Range(func(key, val any) bool {
				cell := val.(*Cell)
				if cell.IsIdle(h.config.idleTimeout) {
					cell.Stop()
					h.cells.CompareAndDelete(key, val)
				}
				return true
			})
		}
	}
}

// Shutdown stops the janitor and every cell goroutine. Connectors stay open;
// their owning handlers observe server shutdown through their own contexts.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.janitorDone)
		h.cells.Range(func(key, val any) bool {
			val.(*Cell).Stop()
			h.cells.Delete(key)
			return true
		})
	})
}
