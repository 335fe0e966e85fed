package tags

import (
	"sync"
	"time"

	"github.com/keyxmakerx/tagdeck/internal/debounce"
	"github.com/keyxmakerx/tagdeck/internal/querycache"
	"github.com/keyxmakerx/tagdeck/internal/tagapi"
)

// Snapshot is what a view's stream renders: the page state and the latest
// list result.
type Snapshot struct {
	State  State
	Result querycache.Result[tagapi.TagPage]
}

// View is the server side of one rendered tag list page. The browser posts
// keystrokes and page changes to it and receives Snapshots over its stream.
// Once initialized from the URL, the view's state is authoritative.
type View struct {
	id      string
	service TagService
	now     func() time.Time

	debouncer *debounce.Debouncer[string]
	observer  *querycache.Observer[tagapi.TagPage]

	// navMu is held from a state change until the observer watches the
	// matching key, so the rows always belong to State.
	navMu sync.Mutex

	mu       sync.Mutex
	state    State
	result   querycache.Result[tagapi.TagPage]
	subs     map[chan Snapshot]struct{}
	lastSeen time.Time
	closed   bool
	done     chan struct{}

	// pubMu orders publishes so a subscriber never sees an older snapshot
	// after a newer one.
	pubMu sync.Mutex
}

func newView(id string, st State, service TagService, delay time.Duration, now func() time.Time) *View {
	v := &View{
		id:       id,
		service:  service,
		now:      now,
		state:    st,
		subs:     make(map[chan Snapshot]struct{}),
		lastSeen: now(),
		done:     make(chan struct{}),
	}
	v.debouncer = debounce.New(st.DebouncedFilter, delay, v.settle)
	v.observer = service.Observe(v.onResult)
	v.observer.SetQuery(service.ListQuery(st.DebouncedFilter, st.Page))
	return v
}

// ID returns the view's identifier.
func (v *View) ID() string { return v.id }

// Done is closed when the view is closed.
func (v *View) Done() <-chan struct{} { return v.done }

// Snapshot returns the current state and result.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{State: v.state, Result: v.result}
}

// Type records a keystroke. The list is re-queried once typing pauses for
// the debounce delay.
func (v *View) Type(text string) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.state = Reduce(v.state, FilterTyped{Text: text})
	v.lastSeen = v.now()
	v.mu.Unlock()

	v.debouncer.Set(text)
}

// GoToPage moves to page n, clamped to the pages known from the last result.
func (v *View) GoToPage(n int) {
	v.navMu.Lock()
	defer v.navMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	if v.result.HasData && v.result.Data.Pages > 0 {
		n = min(n, v.result.Data.Pages)
	}
	v.state = Reduce(v.state, PageChanged{Page: n})
	v.lastSeen = v.now()
	q := v.service.ListQuery(v.state.DebouncedFilter, v.state.Page)
	v.mu.Unlock()

	v.observer.SetQuery(q)
	v.publish()
}

// Retry refetches the current page, typically after an error.
func (v *View) Retry() {
	v.mu.Lock()
	closed := v.closed
	v.lastSeen = v.now()
	v.mu.Unlock()

	if !closed {
		v.observer.Refetch()
	}
}

// Subscribe returns a channel carrying the latest Snapshot, starting with
// the current one. Slow readers only ever see the newest snapshot. The
// returned func detaches the subscriber.
func (v *View) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	v.pubMu.Lock()
	v.mu.Lock()
	v.subs[ch] = struct{}{}
	ch <- Snapshot{State: v.state, Result: v.result}
	v.mu.Unlock()
	v.pubMu.Unlock()

	return ch, func() {
		v.mu.Lock()
		delete(v.subs, ch)
		v.lastSeen = v.now()
		v.mu.Unlock()
	}
}

// Close stops the debouncer and the observer. No snapshot is published
// after Close returns.
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	close(v.done)
	v.mu.Unlock()

	v.debouncer.Stop()
	v.observer.Close()

	// Wait out a publish that started before the view was closed.
	v.pubMu.Lock()
	defer v.pubMu.Unlock()
}

// idle reports whether the view has had no subscriber for longer than timeout.
func (v *View) idle(now time.Time, timeout time.Duration) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs) == 0 && now.Sub(v.lastSeen) > timeout
}

// settle runs when the filter stops changing.
func (v *View) settle(text string) {
	v.navMu.Lock()
	defer v.navMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.state = Reduce(v.state, FilterSettled{Text: text})
	q := v.service.ListQuery(v.state.DebouncedFilter, v.state.Page)
	v.mu.Unlock()

	v.observer.SetQuery(q)
	v.publish()
}

func (v *View) onResult(r querycache.Result[tagapi.TagPage]) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.result = r
	v.mu.Unlock()

	v.publish()
}

func (v *View) publish() {
	v.pubMu.Lock()
	defer v.pubMu.Unlock()

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	snap := Snapshot{State: v.state, Result: v.result}
	subs := make([]chan Snapshot, 0, len(v.subs))
	for ch := range v.subs {
		subs = append(subs, ch)
	}
	v.mu.Unlock()

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
