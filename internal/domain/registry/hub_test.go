package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sunobot/wa-event-gateway/internal/domain/event"
)

func newTestHub() *Hub {
	return NewHub(
		WithMailboxSize(64),
		WithSendTimeout(50*time.Millisecond),
		WithEvictionInterval(time.Hour),
	)
}

func testEvent(instance, text string) *event.ProviderEvent {
	ev, err := event.Normalize(&event.Envelope{
		Event:    "messages.upsert",
		Instance: instance,
		Data:     json.RawMessage(`{"text":"` + text + `"}`),
	})
	if err != nil {
		panic(err)
	}
	return ev
}

func recvEvent(t *testing.T, conn Connector) event.Eventer {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func expectSilent(t *testing.T, conn Connector) {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		t.Fatalf("unexpected event %q", ev.GetID())
	case <-time.After(100 * time.Millisecond):
	}
}

// waitFor polls cond until it holds or the deadline passes. Delivery runs on
// the cell goroutine, so registry effects are eventually visible.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never held")
}

func TestBroadcastWithoutSubscribersIsNoop(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	if hub.Broadcast(testEvent("nobody-home", "hi")) {
		t.Fatal("broadcast to empty instance should report a miss")
	}
}

func TestBroadcastReachesAllSubscribersOfInstance(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	a := NewConnector(context.Background(), "x", 16)
	b := NewConnector(context.Background(), "x", 16)
	other := NewConnector(context.Background(), "y", 16)
	hub.Register(a)
	hub.Register(b)
	hub.Register(other)

	ev := testEvent("x", "hi")
	if !hub.Broadcast(ev) {
		t.Fatal("broadcast should reach instance x")
	}

	if got := recvEvent(t, a); got.GetID() != ev.GetID() {
		t.Fatalf("a got %q, want %q", got.GetID(), ev.GetID())
	}
	if got := recvEvent(t, b); got.GetID() != ev.GetID() {
		t.Fatalf("b got %q, want %q", got.GetID(), ev.GetID())
	}
	expectSilent(t, other)
}

func TestPerSubscriberOrderPreserved(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	conn := NewConnector(context.Background(), "x", 64)
	hub.Register(conn)

	var sent []string
	for i := 0; i < 20; i++ {
		ev := testEvent("x", "m")
		sent = append(sent, ev.GetID())
		hub.Broadcast(ev)
	}

	for i, want := range sent {
		if got := recvEvent(t, conn).GetID(); got != want {
			t.Fatalf("event %d = %q, want %q", i, got, want)
		}
	}
}

func TestUnregisterStopsDeliveryAndEvictsEmptyInstance(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	conn := NewConnector(context.Background(), "x", 16)
	hub.Register(conn)
	hub.Unregister("x", conn.GetID())

	if hub.HasSubscribers("x") {
		t.Fatal("instance x should have no subscribers")
	}
	if stats := hub.Stats(); stats.TotalInstances != 0 {
		t.Fatalf("empty instance entry not evicted: %+v", stats)
	}

	hub.Broadcast(testEvent("x", "late"))
	expectSilent(t, conn)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	conn := NewConnector(context.Background(), "x", 16)
	hub.Register(conn)

	hub.Unregister("x", conn.GetID())
	hub.Unregister("x", conn.GetID())
	hub.Unregister("x", uuid.New())
	hub.Unregister("never-seen", conn.GetID())
}

func TestDeadSubscriberPrunedOnFailedWrite(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	a := NewConnector(context.Background(), "x", 16)
	b := NewConnector(context.Background(), "x", 16)
	hub.Register(a)
	hub.Register(b)

	first := testEvent("x", "one")
	hub.Broadcast(first)
	recvEvent(t, a)
	recvEvent(t, b)

	// Kill A without unregistering, as a broken transport would.
	a.Close()

	second := testEvent("x", "two")
	hub.Broadcast(second)

	if got := recvEvent(t, b); got.GetID() != second.GetID() {
		t.Fatalf("b got %q, want %q", got.GetID(), second.GetID())
	}
	waitFor(t, func() bool { return hub.Stats().TotalSubscribers == 1 })
}

func TestLastDeadSubscriberEvictsInstanceEntry(t *testing.T) {
	hub := newTestHub()
	defer hub.Shutdown()

	conn := NewConnector(context.Background(), "x", 16)
	hub.Register(conn)
	conn.Close()

	hub.Broadcast(testEvent("x", "into the void"))
	waitFor(t, func() bool { return hub.Stats().TotalInstances == 0 })
}

func TestConnectorCloseIsIdempotent(t *testing.T) {
	conn := NewConnector(context.Background(), "x", 4)
	conn.Close()
	conn.Close()

	if !conn.IsClosed() {
		t.Fatal("connector should report closed")
	}
	select {
	case <-conn.Done():
	default:
		t.Fatal("Done should be signalled after Close")
	}
}

func TestSendAfterCloseFails(t *testing.T) {
	conn := NewConnector(context.Background(), "x", 4)
	conn.Close()

	if conn.Send(testEvent("x", "hi"), 10*time.Millisecond) {
		t.Fatal("send on closed connector should fail")
	}
}
