// Package debounce provides a trailing-edge debouncer. A Debouncer holds the
// most recent input and commits it only after the input has stayed unchanged
// for a quiet period. Each new input cancels the pending schedule and starts
// a new one, so at most one commit happens per window.
package debounce

import (
	"sync"
	"time"
)

// Debouncer stabilizes a rapidly changing value of type T. The committed
// value (Value) trails the input (Set) by at least the configured delay.
type Debouncer[T comparable] struct {
	mu        sync.Mutex
	delay     time.Duration
	input     T
	committed T
	timer     *time.Timer
	gen       uint64
	stopped   bool
	onCommit  func(T)

	// fireMu is held while onCommit runs so Stop can wait for it.
	fireMu sync.Mutex
}

// Handle identifies one scheduled commit. A newer Set, Cancel, or Stop
// invalidates every earlier handle.
type Handle struct {
	d   schedule
	gen uint64
}

type schedule interface {
	cancelGen(gen uint64) bool
	pendingGen(gen uint64) bool
}

// Cancel drops the scheduled commit if it is still the latest one. It
// returns true if a pending commit was cancelled.
func (h Handle) Cancel() bool {
	if h.d == nil {
		return false
	}
	return h.d.cancelGen(h.gen)
}

// Pending reports whether the scheduled commit can still fire.
func (h Handle) Pending() bool {
	if h.d == nil {
		return false
	}
	return h.d.pendingGen(h.gen)
}

// New creates a Debouncer whose input and committed value start at initial.
// onCommit (may be nil) runs on a timer goroutine each time a new value is
// committed. It must not call Stop on the same Debouncer.
func New[T comparable](initial T, delay time.Duration, onCommit func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		delay:     delay,
		input:     initial,
		committed: initial,
		onCommit:  onCommit,
	}
}

// Set records a new input. When v differs from the latest input, any pending
// commit is cancelled and a new one is scheduled delay from now. Setting the
// same input again keeps the existing schedule. After Stop, Set is a no-op.
func (d *Debouncer[T]) Set(v T) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return Handle{}
	}
	if v == d.input {
		if d.timer != nil {
			return Handle{d: d, gen: d.gen}
		}
		if v == d.committed {
			return Handle{}
		}
	}

	d.input = v
	d.stopTimerLocked()
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen, v) })
	return Handle{d: d, gen: gen}
}

// Value returns the last committed value.
func (d *Debouncer[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.committed
}

// Input returns the latest value passed to Set.
func (d *Debouncer[T]) Input() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// SetDelay changes the quiet period. The new delay applies to the next
// schedule; a commit that is already pending keeps its deadline.
func (d *Debouncer[T]) SetDelay(delay time.Duration) {
	d.mu.Lock()
	d.delay = delay
	d.mu.Unlock()
}

// Cancel drops the pending commit, if any. The input stays where it is, so
// the committed value and the input may differ until the next Set.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.gen++
}

// Stop tears the debouncer down. The pending commit is dropped, later Set
// calls are ignored, and Stop blocks until an onCommit call already in
// progress returns. No commit is delivered after Stop returns.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.stopTimerLocked()
	d.gen++
	d.mu.Unlock()

	// Wait out a commit that passed the generation check before we stopped.
	d.fireMu.Lock()
	defer d.fireMu.Unlock()
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.fireMu.Lock()
	defer d.fireMu.Unlock()

	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if v == d.committed {
		d.mu.Unlock()
		return
	}
	d.committed = v
	onCommit := d.onCommit
	d.mu.Unlock()

	if onCommit != nil {
		onCommit(v)
	}
}

func (d *Debouncer[T]) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) cancelGen(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || gen != d.gen || d.timer == nil {
		return false
	}
	d.stopTimerLocked()
	d.gen++
	return true
}

func (d *Debouncer[T]) pendingGen(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.stopped && gen == d.gen && d.timer != nil
}
