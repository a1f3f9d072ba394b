/*
Package registry implements the per-instance subscriber registry and its
fan-out machinery.

Key architectural concepts:
  - Instance cells: every instance with at least one live subscriber is
    represented by an isolated Cell that owns delivery for that instance.
  - Decoupling and backpressure: each cell has a buffered mailbox, so a slow
    stream consumer never blocks the webhook ingestion path.
  - Single marshal per fan-out: the wire frame is serialized once per event
    and cached, however many subscribers an instance has.
  - Concurrency: lock-free cell lookup via sync.Map, fine-grained RWMutex
    inside each cell; nothing serializes unrelated instances.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
	"github.com/sunobot/wa-event-gateway/internal/metrics"
)

// Celler defines the internal API for per-instance delivery units.
type Celler interface {
	Push(ev event.Eventer) bool
	Attach(conn Connector)
	Detach(connID uuid.UUID) bool
	Len() int
	IsIdle(timeout time.Duration) bool
	Stop()
}

// Cell implements isolated delivery for a single instance.
type Cell struct {
	instance string

	// mailbox decouples the broadcast caller from subscriber I/O. It acts as
	// a shock absorber under bursty webhook arrival.
	mailbox chan event.Eventer

	// sessions holds every live subscriber of this instance. RWMutex because
	// delivery reads vastly outnumber connect/disconnect writes.
	sessions map[uuid.UUID]Connector
	mu       sync.RWMutex

	sendTimeout time.Duration

	// onEmpty tells the hub to purge this cell once the last session is gone,
	// keeping the instance map free of empty sets.
	onEmpty func()

	doneCh   chan struct{}
	stopOnce sync.Once

	lastActivityAt time.Time
}

func NewCell(instance string, cfg hubConfig, onEmpty func()) *Cell {
	c := &Cell{
		instance:       instance,
		mailbox:        make(chan event.Eventer, cfg.mailboxSize),
		sessions:       make(map[uuid.UUID]Connector),
		sendTimeout:    cfg.sendTimeout,
		onEmpty:        onEmpty,
		doneCh:         make(chan struct{}),
		lastActivityAt: time.Now(),
	}
	go c.loop()
	return c
}

// IsIdle reports whether the cell has no sessions and has been quiet longer
// than timeout. Used by the janitor to reclaim cells that raced eviction.
func (c *Cell) IsIdle(timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions) == 0 && time.Since(c.lastActivityAt) > timeout
}

func (c *Cell) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Cell) touch() {
	c.mu.Lock()
	c.lastActivityAt = time.Now()
	c.mu.Unlock()
}

func (c *Cell) Push(ev event.Eventer) bool {
	c.touch()
	select {
	case c.mailbox <- ev:
		return true
	default:
		metrics.EventsDropped.Inc()
		return false
	}
}

func (c *Cell) Attach(conn Connector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = time.Now()
	c.sessions[conn.GetID()] = conn
}

// Detach removes one session and reports whether the cell is now empty.
// Detaching an absent session is a harmless no-op, which makes the two
// teardown triggers (peer close, heartbeat failure) safe to race.
func (c *Cell) Detach(connID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, connID)
	c.lastActivityAt = time.Now()
	return len(c.sessions) == 0
}

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

// deliver fans one event out to every live session. A failed send on a closed
// connector prunes that session immediately, so dead connections self-heal on
// the first write after they die instead of waiting for a heartbeat cycle.
func (c *Cell) deliver(ev event.Eventer) {
	start := time.Now()

	c.mu.RLock()
	if len(c.sessions) == 0 {
		c.mu.RUnlock()
		return
	}

	var dead []uuid.UUID
	for id, conn := range c.sessions {
		if !conn.Send(ev, c.sendTimeout) && conn.IsClosed() {
			dead = append(dead, id)
		}
	}
	c.mu.RUnlock()

	metrics.FanoutDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	if len(dead) == 0 {
		return
	}

	empty := false
	for _, id := range dead {
		empty = c.Detach(id)
		metrics.SubscribersActive.Dec()
	}
	if empty && c.onEmpty != nil {
		c.onEmpty()
	}
}

func (c *Cell) Stop() {
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
}
