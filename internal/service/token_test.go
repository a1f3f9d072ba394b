package service

import (
	"testing"
	"time"
)

func TestTokenValidateScopesAndExpiry(t *testing.T) {
	now := time.Now()
	store := NewTokenStore(WithTokenClock(func() time.Time { return now }))

	token, ttl, err := store.Issue("acct-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ttl != TokenTTL {
		t.Fatalf("ttl = %v, want %v", ttl, TokenTTL)
	}
	if len(token) != 64 {
		t.Fatalf("token length = %d, want 64 hex chars", len(token))
	}

	if store.Validate(token, "acct-2") {
		t.Fatal("token must not validate for a different instance")
	}
	if !store.Validate(token, "acct-1") {
		t.Fatal("token should validate for its own instance")
	}

	// Reuse within TTL is allowed; validation must not consume the token.
	if !store.Validate(token, "acct-1") {
		t.Fatal("token should remain valid for reconnects inside the TTL")
	}

	now = now.Add(TokenTTL + time.Second)
	if store.Validate(token, "acct-1") {
		t.Fatal("expired token must fail closed")
	}
	// Expiry check evicted the entry; even rolling the clock back cannot
	// resurrect it.
	now = now.Add(-2 * TokenTTL)
	if store.Validate(token, "acct-1") {
		t.Fatal("evicted token must stay invalid")
	}
}

func TestTokenValidateUnknownToken(t *testing.T) {
	store := NewTokenStore()
	if store.Validate("deadbeef", "acct-1") {
		t.Fatal("unknown token must fail closed")
	}
}

func TestTokenSweepReclaimsExpired(t *testing.T) {
	now := time.Now()
	store := NewTokenStore(
		WithTokenClock(func() time.Time { return now }),
		WithTokenTTL(time.Minute),
	)

	fresh, _, _ := store.Issue("a")
	stale, _, _ := store.Issue("b")

	now = now.Add(30 * time.Second)
	keep, _, _ := store.Issue("c")
	_ = fresh
	_ = stale

	now = now.Add(45 * time.Second) // a and b past TTL, c not yet

	if removed := store.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if !store.Validate(keep, "c") {
		t.Fatal("unexpired token should survive the sweep")
	}
}
