package querycache

import (
	"context"
	"time"
)

// Status is the lifecycle state of an observed query.
type Status int

const (
	// StatusPending means no data has arrived yet for any key.
	StatusPending Status = iota

	// StatusSuccess means Data holds a successful result.
	StatusSuccess

	// StatusError means the latest fetch failed. Data may still hold the
	// last good result when HasData is true.
	StatusError
)

// String returns a lowercase label for logs and templates.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is what an Observer reports. Callers switch on Status.
type Result[T any] struct {
	Status Status
	Data   T

	// HasData is true when Data holds a real result (possibly a placeholder).
	HasData bool

	// Err is set when Status is StatusError.
	Err error

	// IsPlaceholder is true when Data belongs to the previous key and the
	// current key's data has not arrived yet.
	IsPlaceholder bool

	// IsFetching is true while a fetch for the current key is in flight.
	IsFetching bool

	// UpdatedAt is when Data was fetched.
	UpdatedAt time.Time
}

// Query pairs a key with the function that loads it.
type Query[T any] struct {
	Key Key
	Fn  func(ctx context.Context) (T, error)
}
