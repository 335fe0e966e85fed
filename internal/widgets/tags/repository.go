package tags

import (
	"context"

	"github.com/keyxmakerx/tagdeck/internal/tagapi"
)

// TagRepository defines the data access contract for tags. Records live in
// the remote tag API; *tagapi.Client is the production implementation and
// tests substitute a mock.
type TagRepository interface {
	// List returns one page of tags, optionally filtered by title.
	List(ctx context.Context, params tagapi.ListParams) (*tagapi.TagPage, error)

	// Create submits a new tag and returns the stored record.
	Create(ctx context.Context, req tagapi.CreateTagRequest) (*tagapi.Tag, error)
}

var _ TagRepository = (*tagapi.Client)(nil)
