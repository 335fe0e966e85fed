package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStore_GetMiss(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "test")

	got, err := s.Get(context.Background(), NewKey("get-tags", "", "1"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestRedisStore_SetGet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "test")
	ctx := context.Background()
	key := NewKey("get-tags", "café", "1")

	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Set(ctx, key, 0, StoredEntry{Data: json.RawMessage(`{"items":3}`), UpdatedAt: updated}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, key, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || string(got.Data) != `{"items":3}` || !got.UpdatedAt.Equal(updated) {
		t.Errorf("unexpected entry: %+v", got)
	}

	for _, k := range mr.Keys() {
		if strings.Contains(k, "café") {
			t.Errorf("expected filter text to be hashed out of key %q", k)
		}
	}
	if ttl := mr.TTL(s.entryKey(key, 0)); ttl != time.Minute {
		t.Errorf("expected TTL of 1m, got %v", ttl)
	}
}

func TestRedisStore_InvalidateOrphansFamily(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "test")
	ctx := context.Background()

	tags := NewKey("get-tags", "", "1")
	videos := NewKey("get-videos", "", "1")
	entry := StoredEntry{Data: json.RawMessage(`"x"`), UpdatedAt: time.Now()}
	_ = s.Set(ctx, tags, 0, entry, time.Minute)
	_ = s.Set(ctx, videos, 0, entry, time.Minute)

	if err := s.Invalidate(ctx, "get-tags"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tagsVer, _ := s.Version(ctx, "get-tags")
	videosVer, _ := s.Version(ctx, "get-videos")
	if tagsVer != 1 || videosVer != 0 {
		t.Fatalf("unexpected versions: tags=%d videos=%d", tagsVer, videosVer)
	}
	if got, _ := s.Get(ctx, tags, tagsVer); got != nil {
		t.Error("expected invalidated family to miss")
	}
	if got, _ := s.Get(ctx, videos, videosVer); got == nil {
		t.Error("expected other family to survive")
	}
}

func TestRedisStore_SetRejectsMovedVersion(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	a := NewRedisStore(rdb, "test")
	b := NewRedisStore(rdb, "test")
	key := NewKey("get-tags", "", "1")

	before, err := a.Version(ctx, "get-tags")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Invalidate(ctx, "get-tags"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = a.Set(ctx, key, before, StoredEntry{Data: json.RawMessage(`"old"`), UpdatedAt: time.Now()}, time.Minute)
	if !errors.Is(err, ErrVersionChanged) {
		t.Fatalf("expected ErrVersionChanged, got %v", err)
	}
	for _, ver := range []int64{before, before + 1} {
		if got, _ := a.Get(ctx, key, ver); got != nil {
			t.Errorf("expected nothing stored under version %d, got %s", ver, got.Data)
		}
	}
	if n := len(mr.Keys()); n != 1 {
		t.Errorf("expected only the version key, got %v", mr.Keys())
	}
}

func TestRedisStore_SubscribeSkipsOwnInvalidations(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewRedisStore(rdb, "test")
	b := NewRedisStore(rdb, "test")
	if a.Origin() == b.Origin() {
		t.Fatal("expected distinct origins per store")
	}

	var aHeard atomic.Int32
	bHeard := make(chan string, 1)
	if err := a.Subscribe(ctx, func(string) { aHeard.Add(1) }); err != nil {
		t.Fatalf("subscribing a: %v", err)
	}
	if err := b.Subscribe(ctx, func(family string) { bHeard <- family }); err != nil {
		t.Fatalf("subscribing b: %v", err)
	}

	if err := a.Invalidate(ctx, "get-tags"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case family := <-bHeard:
		if family != "get-tags" {
			t.Errorf("expected get-tags, got %q", family)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("other instance never heard the invalidation")
	}

	time.Sleep(30 * time.Millisecond)
	if aHeard.Load() != 0 {
		t.Errorf("expected publisher to skip its own message, heard %d", aHeard.Load())
	}
}

func TestClient_SharesResultsThroughStore(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	first := NewClient[[]string](Options{Store: NewRedisStore(rdb, "test")})
	second := NewClient[[]string](Options{Store: NewRedisStore(rdb, "test")})

	key := NewKey("get-tags", "", "1")
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"go", "rust"}, nil
	}

	if _, err := first.Fetch(ctx, Query[[]string]{Key: key, Fn: fn}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := second.Fetch(ctx, Query[[]string]{Key: key, Fn: fn})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1] != "rust" {
		t.Errorf("unexpected shared result %v", got)
	}
	if calls.Load() != 1 {
		t.Errorf("expected second instance to reuse the stored result, got %d calls", calls.Load())
	}
}

func TestClient_RemoteInvalidationRefetchesObservers(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := NewClient[string](Options{Store: NewRedisStore(rdb, "test")})
	reader := NewClient[string](Options{StaleTime: time.Hour, Store: NewRedisStore(rdb, "test")})
	if err := reader.Subscribe(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var current atomic.Value
	current.Store("before")
	rec := newRecorder()
	o := reader.Observe(rec.onChange)
	defer o.Close()
	o.SetQuery(Query[string]{Key: NewKey("get-tags", "", "1"), Fn: func(ctx context.Context) (string, error) {
		return current.Load().(string), nil
	}})
	rec.waitFor(t, "before", success("before"))

	current.Store("after")
	if err := writer.Invalidate(ctx, "get-tags"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.waitFor(t, "after", success("after"))
}

func TestClient_FetchRacingRemoteInvalidationIsNotShared(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	// slow never hears invalidations, so only the shared version can stop
	// its result from being published.
	slow := NewClient[string](Options{Store: NewRedisStore(rdb, "test")})
	creator := NewClient[string](Options{Store: NewRedisStore(rdb, "test")})
	key := NewKey("get-tags", "", "1")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan string, 1)
	go func() {
		data, _ := slow.Fetch(ctx, Query[string]{Key: key, Fn: func(ctx context.Context) (string, error) {
			close(started)
			<-release
			return "before-create", nil
		}})
		done <- data
	}()

	<-started
	if err := creator.Invalidate(ctx, "get-tags"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	close(release)
	if got := <-done; got != "before-create" {
		t.Fatalf("expected the slow fetch to return its own result, got %q", got)
	}

	got, err := creator.Fetch(ctx, Query[string]{Key: key, Fn: func(ctx context.Context) (string, error) {
		return "after-create", nil
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "after-create" {
		t.Errorf("expected a fresh fetch after invalidation, got %q", got)
	}
}
