package querycache

import (
	"context"
	"errors"
	"sync"
)

// ErrMutationInFlight is returned by Mutation.Do when the same instance
// already has a call running.
var ErrMutationInFlight = errors.New("mutation already in flight")

// Mutation runs a write operation at most once at a time per instance (for
// example one open form) and calls onSuccess after each successful run.
type Mutation[I, O any] struct {
	fn        func(ctx context.Context, in I) (O, error)
	onSuccess func(ctx context.Context, in I, out O)

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewMutation creates a Mutation. onSuccess may be nil.
func NewMutation[I, O any](fn func(ctx context.Context, in I) (O, error), onSuccess func(ctx context.Context, in I, out O)) *Mutation[I, O] {
	return &Mutation[I, O]{
		fn:        fn,
		onSuccess: onSuccess,
		inflight:  make(map[string]struct{}),
	}
}

// Do runs the mutation for instance. A second call for the same instance
// while the first is running fails with ErrMutationInFlight.
func (m *Mutation[I, O]) Do(ctx context.Context, instance string, in I) (O, error) {
	var zero O

	m.mu.Lock()
	if _, busy := m.inflight[instance]; busy {
		m.mu.Unlock()
		return zero, ErrMutationInFlight
	}
	m.inflight[instance] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, instance)
		m.mu.Unlock()
	}()

	out, err := m.fn(ctx, in)
	if err != nil {
		return zero, err
	}
	if m.onSuccess != nil {
		m.onSuccess(ctx, in, out)
	}
	return out, nil
}

// Pending reports whether instance has a call running.
func (m *Mutation[I, O]) Pending(instance string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, busy := m.inflight[instance]
	return busy
}
