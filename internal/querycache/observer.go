package querycache

import (
	"context"
	"sync"
	"sync/atomic"
)

// Observer watches one key at a time and reports every change of its Result
// to onChange. Switching keys keeps the previous data visible as a
// placeholder until the new key's data arrives. Responses for keys the
// observer has already moved away from are dropped.
type Observer[T any] struct {
	client   *Client[T]
	onChange func(Result[T])

	ctx    context.Context
	cancel context.CancelFunc

	key atomic.Pointer[Key]

	mu       sync.Mutex
	query    Query[T]
	hasQuery bool
	result   Result[T]
	gen      uint64
	seq      uint64
	closed   bool

	// notifyMu serializes onChange calls so results are delivered in order.
	notifyMu  sync.Mutex
	delivered uint64
}

// Observe returns an Observer bound to c. onChange runs on a background
// goroutine and must not call SetQuery or Refetch synchronously.
func (c *Client[T]) Observe(onChange func(Result[T])) *Observer[T] {
	if onChange == nil {
		onChange = func(Result[T]) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Observer[T]{
		client:   c,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.register(o)
	return o
}

// SetQuery points the observer at q. Setting the key it already watches is a
// no-op. Cached data for the new key is reported at once and refetched in
// the background when stale.
func (o *Observer[T]) SetQuery(q Query[T]) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	if o.hasQuery && o.query.Key == q.Key {
		o.query = q
		o.mu.Unlock()
		return
	}

	o.query = q
	o.hasQuery = true
	key := q.Key
	o.key.Store(&key)
	o.gen++
	gen := o.gen

	data, updatedAt, cached, fresh := o.client.lookup(q.Key)
	switch {
	case cached:
		o.result = Result[T]{
			Status:     StatusSuccess,
			Data:       data,
			HasData:    true,
			IsFetching: !fresh,
			UpdatedAt:  updatedAt,
		}
	case o.result.HasData:
		o.result.Status = StatusSuccess
		o.result.Err = nil
		o.result.IsPlaceholder = true
		o.result.IsFetching = true
	default:
		o.result = Result[T]{Status: StatusPending, IsFetching: true}
	}
	o.seq++
	o.mu.Unlock()

	o.notify()
	if !fresh {
		go o.fetch(gen, q)
	}
}

// Refetch reloads the current key, keeping the current data visible.
func (o *Observer[T]) Refetch() {
	o.mu.Lock()
	if o.closed || !o.hasQuery {
		o.mu.Unlock()
		return
	}
	o.gen++
	gen := o.gen
	q := o.query
	o.result.IsFetching = true
	o.seq++
	o.mu.Unlock()

	o.notify()
	go o.fetch(gen, q)
}

// Result returns the latest result.
func (o *Observer[T]) Result() Result[T] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Key returns the key being watched, if any.
func (o *Observer[T]) Key() (Key, bool) {
	k := o.key.Load()
	if k == nil {
		return Key{}, false
	}
	return *k, true
}

// Close detaches the observer. No onChange call starts after Close returns.
func (o *Observer[T]) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()

	o.cancel()
	o.client.unregister(o)

	// Wait for an in-progress delivery.
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
}

func (o *Observer[T]) fetch(gen uint64, q Query[T]) {
	data, err := o.client.Fetch(o.ctx, q)

	o.mu.Lock()
	if o.closed || gen != o.gen {
		o.mu.Unlock()
		return
	}
	if err != nil {
		o.result.Status = StatusError
		o.result.Err = err
		o.result.IsFetching = false
	} else {
		_, updatedAt, _ := o.client.Peek(q.Key)
		o.result = Result[T]{
			Status:    StatusSuccess,
			Data:      data,
			HasData:   true,
			UpdatedAt: updatedAt,
		}
	}
	o.seq++
	o.mu.Unlock()

	o.notify()
}

// notify delivers the newest undelivered result, if any.
func (o *Observer[T]) notify() {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.closed || o.seq == o.delivered {
		o.mu.Unlock()
		return
	}
	res := o.result
	o.delivered = o.seq
	o.mu.Unlock()

	o.onChange(res)
}
