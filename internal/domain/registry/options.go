package registry

import "time"

type hubConfig struct {
	evictionInterval time.Duration
	idleTimeout      time.Duration
	mailboxSize      int
	sendTimeout      time.Duration
}

func defaultHubConfig() hubConfig {
	return hubConfig{
		evictionInterval: 15 * time.Minute,
		idleTimeout:      30 * time.Minute,
		mailboxSize:      1024,
		sendTimeout:      500 * time.Millisecond,
	}
}

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithEvictionInterval configures how often the janitor runs to reclaim
// memory from session-less instance cells.
func WithEvictionInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.config.evictionInterval = d
	}
}

// WithIdleTimeout defines the quiet period after which an instance cell
// without sessions is eligible for eviction.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.idleTimeout = d
	}
}

// WithMailboxSize sets the buffer capacity of each instance cell's mailbox.
func WithMailboxSize(size int) Option {
	return func(h *Hub) {
		h.config.mailboxSize = size
	}
}

// WithSendTimeout bounds how long one fan-out waits on a single saturated
// subscriber before shedding.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.config.sendTimeout = d
	}
}
