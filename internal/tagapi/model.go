// Package tagapi is the client for the remote tag REST API. The API owns
// every tag record; Tagdeck only lists pages of tags and submits new ones.
package tagapi

// Tag is a single record as returned by GET /tags.
type Tag struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	AmountOfVideos int    `json:"amountOfVideos"`
}

// TagPage is the paginated envelope returned by GET /tags. Prev and Next
// are nil when there is no such page.
type TagPage struct {
	First int   `json:"first"`
	Prev  *int  `json:"prev"`
	Next  *int  `json:"next"`
	Last  int   `json:"last"`
	Pages int   `json:"pages"`
	Items int   `json:"items"`
	Data  []Tag `json:"data"`
}

// HasPrev reports whether a previous page exists.
func (p *TagPage) HasPrev() bool { return p != nil && p.Prev != nil }

// HasNext reports whether a next page exists.
func (p *TagPage) HasNext() bool { return p != nil && p.Next != nil }

// ListParams selects one page of tags.
type ListParams struct {
	// Title filters tags whose title contains this text. Empty means no filter.
	Title string

	// Page is the 1-based page index.
	Page int

	// PerPage is the page size.
	PerPage int
}

// CreateTagRequest is the body of POST /tags.
type CreateTagRequest struct {
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	AmountOfVideos int    `json:"amountOfVideos"`
}
