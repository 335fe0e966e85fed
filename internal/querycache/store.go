package querycache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// StoredEntry is the serialized form of a cached result in a shared Store.
type StoredEntry struct {
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ErrVersionChanged is returned by Store.Set when the family was invalidated
// after the caller read its version. The entry is not written.
var ErrVersionChanged = errors.New("querycache: family version changed")

// Store is a shared second-level cache. Every family has a version that
// invalidation bumps; entries are read and written under an explicit
// version, so entries of an older version are unreachable. Invalidations are
// broadcast to every subscriber except the instance that issued them.
type Store interface {
	// Version returns the family's current version.
	Version(ctx context.Context, family string) (int64, error)

	// Get returns the entry for key under version, or nil with a nil error
	// on a miss.
	Get(ctx context.Context, key Key, version int64) (*StoredEntry, error)

	// Set stores an entry for key with the given time-to-live, provided the
	// family is still at version. Otherwise it returns ErrVersionChanged.
	Set(ctx context.Context, key Key, version int64, entry StoredEntry, ttl time.Duration) error

	// Invalidate makes every entry of the family unreachable and notifies
	// other instances.
	Invalidate(ctx context.Context, family string) error

	// Subscribe calls handler for every family invalidated by another
	// instance until ctx is cancelled. It returns once the subscription is
	// active.
	Subscribe(ctx context.Context, handler func(family string)) error
}
