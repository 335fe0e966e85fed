package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/keyxmakerx/tagdeck/internal/metrics"
)

// Defaults applied by NewClient for zero-valued options.
const (
	DefaultStaleTime = 5 * time.Second
	DefaultGCTime    = 5 * time.Minute
	maxRetryDelay    = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	// StaleTime is how long a fetched result counts as fresh. Fresh results
	// are served without contacting the upstream.
	StaleTime time.Duration

	// GCTime is how long an entry nobody observes is kept before eviction.
	GCTime time.Duration

	// Retry is how many times a failed fetch is retried. Zero disables retries.
	Retry int

	// RetryDelay returns the wait before retry attempt n (0-based). Defaults
	// to 1s doubled per attempt, capped at 30s.
	RetryDelay func(attempt int) time.Duration

	// Store is an optional shared second-level cache.
	Store Store

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Client caches results of type T. It is safe for concurrent use.
type Client[T any] struct {
	opts Options

	mu        sync.Mutex
	entries   map[Key]*entry[T]
	epochs    map[string]uint64
	observers map[*Observer[T]]struct{}

	group singleflight.Group
}

// entry is one cached key. Data is fresh when it was fetched in the current
// epoch of its family and within StaleTime.
type entry[T any] struct {
	data      T
	hasData   bool
	err       error
	updatedAt time.Time
	epoch     uint64
	lastUsed  time.Time
}

// NewClient creates a Client with the given options.
func NewClient[T any](opts Options) *Client[T] {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.GCTime <= 0 {
		opts.GCTime = DefaultGCTime
	}
	if opts.RetryDelay == nil {
		opts.RetryDelay = defaultRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client[T]{
		opts:      opts,
		entries:   make(map[Key]*entry[T]),
		epochs:    make(map[string]uint64),
		observers: make(map[*Observer[T]]struct{}),
	}
}

func defaultRetryDelay(attempt int) time.Duration {
	d := time.Second << attempt
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

// Fetch returns the cached result for q.Key when it is fresh, otherwise
// loads it through the shared store or q.Fn. Concurrent fetches of the same
// key share one call to q.Fn.
func (c *Client[T]) Fetch(ctx context.Context, q Query[T]) (T, error) {
	if data, ok := c.fresh(q.Key); ok {
		metrics.CacheLookup(q.Key.Family(), "hit")
		return data, nil
	}
	return c.load(ctx, q)
}

// Peek returns cached data for key regardless of freshness.
func (c *Client[T]) Peek(key Key) (data T, updatedAt time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key]
	if !found || !e.hasData {
		return data, time.Time{}, false
	}
	e.lastUsed = c.opts.Now()
	return e.data, e.updatedAt, true
}

// Invalidate marks every entry of family stale and makes each observer
// watching a key of that family refetch. With a shared store configured,
// other instances are told as well.
func (c *Client[T]) Invalidate(ctx context.Context, family string) error {
	c.invalidateLocal(family, "local")

	if c.opts.Store != nil {
		if err := c.opts.Store.Invalidate(ctx, family); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe wires the client to its shared store so invalidations issued
// by other instances reach local observers. It is a no-op without a store.
func (c *Client[T]) Subscribe(ctx context.Context) error {
	if c.opts.Store == nil {
		return nil
	}
	return c.opts.Store.Subscribe(ctx, func(family string) {
		c.invalidateLocal(family, "remote")
	})
}

// Run evicts idle entries until ctx is cancelled.
func (c *Client[T]) Run(ctx context.Context) {
	interval := c.opts.GCTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-ctx.Done():
			return
		}
	}
}

// Len returns the number of cached entries.
func (c *Client[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Client[T]) invalidateLocal(family, origin string) {
	c.mu.Lock()
	c.epochs[family]++
	var watching []*Observer[T]
	for o := range c.observers {
		if key, ok := o.Key(); ok && key.Family() == family {
			watching = append(watching, o)
		}
	}
	c.mu.Unlock()

	metrics.CacheInvalidation(family, origin)
	slog.Debug("query family invalidated",
		slog.String("family", family),
		slog.String("origin", origin),
		slog.Int("observers", len(watching)),
	)

	for _, o := range watching {
		o.Refetch()
	}
}

// collect drops entries unused for GCTime that no observer is watching.
func (c *Client[T]) collect() {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	watched := make(map[Key]bool, len(c.observers))
	for o := range c.observers {
		if key, ok := o.Key(); ok {
			watched[key] = true
		}
	}
	for key, e := range c.entries {
		if watched[key] {
			continue
		}
		if now.Sub(e.lastUsed) >= c.opts.GCTime {
			delete(c.entries, key)
		}
	}
}

// fresh returns data for key if it was fetched in the family's current
// epoch and is younger than StaleTime.
func (c *Client[T]) fresh(key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freshLocked(key)
}

func (c *Client[T]) freshLocked(key Key) (T, bool) {
	var zero T
	e, ok := c.entries[key]
	if !ok || !e.hasData {
		return zero, false
	}
	now := c.opts.Now()
	e.lastUsed = now
	if e.epoch != c.epochs[key.Family()] || now.Sub(e.updatedAt) >= c.opts.StaleTime {
		return zero, false
	}
	return e.data, true
}

// noVersion marks a load that must not touch the shared store.
const noVersion = -1

// load fetches q regardless of L1 freshness: shared store first, then q.Fn.
// The local epoch and the shared family version are captured before
// fetching, so a result that raced an invalidation on any instance is kept
// locally but never treated as fresh or published to the store.
func (c *Client[T]) load(ctx context.Context, q Query[T]) (T, error) {
	var zero T
	family := q.Key.Family()

	c.mu.Lock()
	epoch := c.epochs[family]
	_, cached := c.entries[q.Key]
	c.mu.Unlock()

	version := int64(noVersion)
	if c.opts.Store != nil {
		if v, err := c.opts.Store.Version(ctx, family); err != nil {
			slog.Warn("reading shared query cache version", slog.String("key", family), slog.Any("error", err))
		} else {
			version = v
			if data, ok := c.fromStore(ctx, q.Key, version, epoch); ok {
				metrics.CacheLookup(family, "shared")
				return data, nil
			}
		}
	}

	if cached {
		metrics.CacheLookup(family, "stale")
	} else {
		metrics.CacheLookup(family, "miss")
	}

	flightKey := q.Key.String() + "#" + strconv.FormatUint(epoch, 10)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		// The shared call outlives any single caller; the upstream client
		// carries its own timeout.
		fctx := context.WithoutCancel(ctx)
		data, err := c.fetchWithRetry(fctx, q)
		c.store(fctx, q.Key, epoch, version, data, err)
		return data, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Client[T]) fetchWithRetry(ctx context.Context, q Query[T]) (T, error) {
	var (
		data T
		err  error
	)
	for attempt := 0; ; attempt++ {
		data, err = q.Fn(ctx)
		if err == nil || attempt >= c.opts.Retry || errors.Is(err, context.Canceled) {
			return data, err
		}

		delay := c.opts.RetryDelay(attempt)
		slog.Warn("query fetch failed, retrying",
			slog.String("key", q.Key.Family()),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.opts.Retry),
			slog.Duration("backoff", delay),
			slog.Any("error", err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return data, err
		}
	}
}

// store records a fetch outcome. Data fetched in an older epoch never
// overwrites data fetched in a newer one, and the shared store only takes it
// while the family is still at the version read before the fetch.
func (c *Client[T]) store(ctx context.Context, key Key, epoch uint64, version int64, data T, err error) {
	now := c.opts.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	e.lastUsed = now
	if err != nil {
		e.err = err
		c.mu.Unlock()
		return
	}
	if e.hasData && e.epoch > epoch {
		c.mu.Unlock()
		return
	}
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = now
	e.epoch = epoch
	current := c.epochs[key.Family()] == epoch
	c.mu.Unlock()

	if c.opts.Store == nil || version == noVersion || !current {
		return
	}

	raw, mErr := json.Marshal(data)
	if mErr != nil {
		slog.Warn("encoding query result for shared cache", slog.Any("error", mErr))
		return
	}
	sErr := c.opts.Store.Set(ctx, key, version, StoredEntry{Data: raw, UpdatedAt: now}, c.opts.GCTime)
	switch {
	case errors.Is(sErr, ErrVersionChanged):
		slog.Debug("skipped shared write of invalidated result", slog.String("key", key.Family()))
	case sErr != nil:
		slog.Warn("writing shared query cache", slog.String("key", key.Family()), slog.Any("error", sErr))
	}
}

// fromStore loads a fresh entry from the shared store into L1.
func (c *Client[T]) fromStore(ctx context.Context, key Key, version int64, epoch uint64) (T, bool) {
	var zero T

	stored, err := c.opts.Store.Get(ctx, key, version)
	if err != nil {
		slog.Warn("reading shared query cache", slog.String("key", key.Family()), slog.Any("error", err))
		return zero, false
	}
	if stored == nil || c.opts.Now().Sub(stored.UpdatedAt) >= c.opts.StaleTime {
		return zero, false
	}

	var data T
	if err := json.Unmarshal(stored.Data, &data); err != nil {
		slog.Warn("decoding shared query cache entry", slog.String("key", key.Family()), slog.Any("error", err))
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epochs[key.Family()] != epoch {
		return zero, false
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = stored.UpdatedAt
	e.epoch = epoch
	e.lastUsed = c.opts.Now()
	return data, true
}

// lookup returns cached data for key and whether it is fresh.
func (c *Client[T]) lookup(key Key) (data T, updatedAt time.Time, ok, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.entries[key]
	if !found || !e.hasData {
		return data, time.Time{}, false, false
	}
	_, fresh = c.freshLocked(key)
	return e.data, e.updatedAt, true, fresh
}

func (c *Client[T]) register(o *Observer[T]) {
	c.mu.Lock()
	c.observers[o] = struct{}{}
	c.mu.Unlock()
}

func (c *Client[T]) unregister(o *Observer[T]) {
	c.mu.Lock()
	delete(c.observers, o)
	c.mu.Unlock()
}
