package tags

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/keyxmakerx/tagdeck/internal/apperror"
	"github.com/keyxmakerx/tagdeck/internal/querycache"
	"github.com/keyxmakerx/tagdeck/internal/sanitize"
	"github.com/keyxmakerx/tagdeck/internal/slug"
	"github.com/keyxmakerx/tagdeck/internal/tagapi"
	"github.com/keyxmakerx/tagdeck/internal/validation"
)

// TagService defines the business logic contract for tag operations.
// Handlers call these methods -- they never touch the repository directly.
type TagService interface {
	// List returns one page of tags through the query cache.
	List(ctx context.Context, filter string, page int) (*tagapi.TagPage, error)

	// ListQuery builds the cached query for one page of tags.
	ListQuery(filter string, page int) querycache.Query[tagapi.TagPage]

	// Observe mounts a consumer of tag list queries. The caller closes it.
	Observe(onChange func(querycache.Result[tagapi.TagPage])) *querycache.Observer[tagapi.TagPage]

	// Create sanitizes and validates input, derives the slug and submits the
	// tag. Every list query is invalidated on success.
	Create(ctx context.Context, in CreateTagInput) (*tagapi.Tag, error)
}

// tagService implements TagService on a query cache over the repository.
type tagService struct {
	repo     TagRepository
	cache    *querycache.Client[tagapi.TagPage]
	create   *querycache.Mutation[tagapi.CreateTagRequest, *tagapi.Tag]
	pageSize int
}

// NewTagService creates a new TagService. pageSize is the number of tags
// requested per page.
func NewTagService(repo TagRepository, cache *querycache.Client[tagapi.TagPage], pageSize int) TagService {
	s := &tagService{repo: repo, cache: cache, pageSize: pageSize}
	s.create = querycache.NewMutation(s.submit, s.created)
	return s
}

// List fetches a page of tags, serving fresh cached pages without an
// upstream call.
func (s *tagService) List(ctx context.Context, filter string, page int) (*tagapi.TagPage, error) {
	data, err := s.cache.Fetch(ctx, s.ListQuery(filter, page))
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// ListQuery keys the page by ("get-tags", filter, page).
func (s *tagService) ListQuery(filter string, page int) querycache.Query[tagapi.TagPage] {
	if page < 1 {
		page = 1
	}
	return querycache.Query[tagapi.TagPage]{
		Key: querycache.NewKey(ListFamily, filter, strconv.Itoa(page)),
		Fn: func(ctx context.Context) (tagapi.TagPage, error) {
			res, err := s.repo.List(ctx, tagapi.ListParams{Title: filter, Page: page, PerPage: s.pageSize})
			if err != nil {
				return tagapi.TagPage{}, err
			}
			return *res, nil
		},
	}
}

func (s *tagService) Observe(onChange func(querycache.Result[tagapi.TagPage])) *querycache.Observer[tagapi.TagPage] {
	return s.cache.Observe(onChange)
}

// Create validates before anything leaves the process: an invalid title
// never reaches the tag API.
func (s *tagService) Create(ctx context.Context, in CreateTagInput) (*tagapi.Tag, error) {
	title := sanitize.Text(in.Title)
	if err := validation.Struct(createTagForm{Title: title}); err != nil {
		return nil, err
	}

	instance := in.FormID
	if instance == "" {
		instance = uuid.NewString()
	}

	req := tagapi.CreateTagRequest{
		Title:          title,
		Slug:           slug.Make(title),
		AmountOfVideos: 0,
	}
	tag, err := s.create.Do(ctx, instance, req)
	if errors.Is(err, querycache.ErrMutationInFlight) {
		return nil, apperror.NewConflict("This tag is already being saved.")
	}
	if err != nil {
		return nil, err
	}
	return tag, nil
}

func (s *tagService) submit(ctx context.Context, req tagapi.CreateTagRequest) (*tagapi.Tag, error) {
	return s.repo.Create(ctx, req)
}

// created invalidates every list page so mounted views refetch. The request
// may already be gone, so the shared store is told without its deadline.
func (s *tagService) created(ctx context.Context, req tagapi.CreateTagRequest, tag *tagapi.Tag) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), ListFamily); err != nil {
		slog.Warn("failed to broadcast tag list invalidation",
			slog.String("slug", req.Slug),
			slog.Any("error", err),
		)
	}
	slog.Info("tag created", slog.String("id", tag.ID), slog.String("slug", tag.Slug))
}
