// Package tags implements the tag browser for Tagdeck: a paginated, searchable
// list of tags owned by the remote tag API plus a dialog to create new ones.
//
// Each rendered page gets a live View held in the Hub. Keystrokes and page
// changes are posted to the view, which debounces the filter, re-keys its
// query observer and pushes table fragments and URL updates to the browser
// over Server-Sent Events.
package tags

import "github.com/keyxmakerx/tagdeck/internal/tagapi"

// ListFamily is the query cache family shared by every tag list page.
const ListFamily = "get-tags"

// CreatedMessage is shown in the toast after a successful create.
const CreatedMessage = "Tag created successfully!"

// CreateTagInput is what a user submits to create a tag. The slug is always
// derived from the title.
type CreateTagInput struct {
	// Title is the raw title as typed.
	Title string `json:"title" form:"title"`

	// FormID identifies the form instance. A second submission with the same
	// ID while the first is in flight is rejected.
	FormID string `json:"-" form:"form_id"`
}

// createTagForm is the sanitized title as validated before any request.
type createTagForm struct {
	Title string `form:"title" validate:"min=3"`
}

// ListResponse is the JSON body of GET /api/v1/tags.
type ListResponse struct {
	Page    int          `json:"page"`
	Title   string       `json:"title"`
	Pages   int          `json:"pages"`
	Items   int          `json:"items"`
	HasPrev bool         `json:"hasPrev"`
	HasNext bool         `json:"hasNext"`
	Data    []tagapi.Tag `json:"data"`
}

// newListResponse shapes an upstream page for the JSON API. Data is never null.
func newListResponse(st State, page *tagapi.TagPage) ListResponse {
	resp := ListResponse{
		Page:    st.Page,
		Title:   st.DebouncedFilter,
		Pages:   page.Pages,
		Items:   page.Items,
		HasPrev: page.HasPrev(),
		HasNext: page.HasNext(),
		Data:    page.Data,
	}
	if resp.Data == nil {
		resp.Data = []tagapi.Tag{}
	}
	return resp
}
