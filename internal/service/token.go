package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	// TokenTTL bounds every issued stream token. Reconnects may reuse a token
	// until then; expiry is the only validity bound.
	TokenTTL = 10 * time.Minute

	// tokenSweepInterval paces the background sweep that reclaims abandoned
	// tokens independently of validation traffic.
	tokenSweepInterval = 5 * time.Minute
)

type tokenEntry struct {
	instance  string
	expiresAt time.Time
}

// TokenStore issues and validates short-lived capability tokens scoping
// stream access to one instance name. Purely in-memory: a restart invalidates
// everything outstanding, which is acceptable for a reconnect-cheap stream.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry

	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time
}

type TokenOption func(*TokenStore)

// WithTokenTTL overrides the issuance TTL. Non-positive values keep the
// default.
func WithTokenTTL(d time.Duration) TokenOption {
	return func(s *TokenStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithTokenSweepInterval overrides the background sweep cadence.
func WithTokenSweepInterval(d time.Duration) TokenOption {
	return func(s *TokenStore) {
		if d > 0 {
			s.sweep = d
		}
	}
}

// WithTokenClock injects a clock for expiry tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenStore) { s.now = now }
}

func NewTokenStore(opts ...TokenOption) *TokenStore {
	s := &TokenStore{
		tokens: make(map[string]tokenEntry),
		ttl:    TokenTTL,
		sweep:  tokenSweepInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a 256-bit random token bound to instance for the configured TTL.
func (s *TokenStore) Issue(instance string) (string, time.Duration, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", 0, fmt.Errorf("token store: entropy: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.tokens[token] = tokenEntry{
		instance:  instance,
		expiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()

	return token, s.ttl, nil
}

// Validate fails closed: unknown token, expired token (evicted as a side
// effect) or an instance mismatch all reject.
func (s *TokenStore) Validate(token, instance string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.tokens, token)
		return false
	}
	return entry.instance == instance
}

// Sweep drops every expired entry and returns how many were reclaimed.
func (s *TokenStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, entry := range s.tokens {
		if !now.Before(entry.expiresAt) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed
}

// Run sweeps on a fixed cadence until the context ends. Abandoned tokens are
// reclaimed even when nobody ever presents them.
func (s *TokenStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
