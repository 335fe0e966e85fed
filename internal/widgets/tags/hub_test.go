package tags

import (
	"sync"
	"testing"
	"time"
)

// testClock is a settable clock for reaping tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHub(t *testing.T, clock *testClock) *Hub {
	t.Helper()
	h := NewHub(newTestService(&mockTagRepo{}), testDebounce, time.Minute)
	h.now = clock.Now
	t.Cleanup(h.Shutdown)
	return h
}

func TestHub_OpenAndGet(t *testing.T) {
	h := newTestHub(t, &testClock{now: time.Unix(0, 0)})

	a := h.Open(State{Page: 1})
	b := h.Open(State{Page: 2})
	if a.ID() == b.ID() {
		t.Fatal("expected distinct view IDs")
	}
	if got, ok := h.Get(b.ID()); !ok || got != b {
		t.Error("expected to find the second view")
	}
	if _, ok := h.Get("missing"); ok {
		t.Error("expected unknown ID to miss")
	}
	if h.Len() != 2 {
		t.Errorf("expected 2 views, got %d", h.Len())
	}
}

func TestHub_ReapsOnlyIdleViews(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	h := newTestHub(t, clock)

	idle := h.Open(State{Page: 1})
	watched := h.Open(State{Page: 1})
	_, detach := watched.Subscribe()
	defer detach()

	clock.Advance(30 * time.Second)
	if n := h.reap(); n != 0 {
		t.Fatalf("expected nothing reaped before the timeout, got %d", n)
	}

	clock.Advance(time.Minute)
	if n := h.reap(); n != 1 {
		t.Fatalf("expected one view reaped, got %d", n)
	}
	if _, ok := h.Get(idle.ID()); ok {
		t.Error("expected idle view removed")
	}
	select {
	case <-idle.Done():
	default:
		t.Error("expected idle view closed")
	}
	if _, ok := h.Get(watched.ID()); !ok {
		t.Error("expected view with a stream kept")
	}
}

func TestHub_DetachStartsIdleTimer(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	h := newTestHub(t, clock)

	v := h.Open(State{Page: 1})
	_, detach := v.Subscribe()

	clock.Advance(10 * time.Minute)
	detach()

	clock.Advance(30 * time.Second)
	if n := h.reap(); n != 0 {
		t.Errorf("expected a recently detached view kept, got %d reaped", n)
	}
}

func TestHub_ShutdownClosesViews(t *testing.T) {
	h := newTestHub(t, &testClock{now: time.Unix(0, 0)})
	v := h.Open(State{Page: 1})

	h.Shutdown()

	if h.Len() != 0 {
		t.Errorf("expected no views after shutdown, got %d", h.Len())
	}
	select {
	case <-v.Done():
	default:
		t.Error("expected view closed")
	}
}
