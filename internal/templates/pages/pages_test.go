package pages

import (
	"context"
	"strings"
	"testing"

	"github.com/keyxmakerx/tagdeck/internal/tagapi"
	"github.com/keyxmakerx/tagdeck/internal/templates/layouts"
)

func TestTags_FullPage(t *testing.T) {
	ctx := layouts.SetCSRFToken(context.Background(), "tok123")
	ctx = layouts.SetFlashSuccess(ctx, "Tag created successfully!")

	html, err := RenderString(ctx, Tags(TagsPage{
		ViewID:    "v1",
		Filter:    "café & co",
		StreamURL: "/tags/views/v1/stream",
		FilterURL: "/tags/views/v1/filter",
		ExportURL: "/tags/export?page=1&title=caf%C3%A9",
		Table: Table{
			Status:  "success",
			HasData: true,
			Rows:    []tagapi.Tag{{Title: "<b>Go</b>", Slug: "go", AmountOfVideos: 1}},
			Items:   1, Showing: 1, Page: 1, Pages: 1, PrevPage: 1, NextPage: 1, LastPage: 1,
			PageURL: "/tags/views/v1/page",
		},
		Form: Form{Open: true, InstanceID: "f1"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{
		"<title>Tags · Tagdeck</title>",
		`value="café &amp; co"`,
		"&lt;b&gt;Go&lt;/b&gt;",
		"1 video",
		"Showing 1 of 1 items",
		"Page 1 of 1",
		`value="tok123"`,
		`name="form_id" value="f1"`,
		"Tag created successfully!",
		`data-stream-url="/tags/views/v1/stream"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if strings.Contains(html, "<b>Go</b>") {
		t.Error("tag titles must be escaped")
	}
}

func TestTagTable_ErrorWithoutData(t *testing.T) {
	html, err := RenderString(context.Background(), TagTable(Table{
		Status:       "error",
		ErrorMessage: "The tag service is unavailable.",
		RetryURL:     "/tags/views/v1/retry",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "The tag service is unavailable.") || !strings.Contains(html, `hx-post="/tags/views/v1/retry"`) {
		t.Errorf("expected error panel with retry, got:\n%s", html)
	}
	if strings.Contains(html, "<table") {
		t.Error("expected no table without data")
	}
}

func TestTagTable_PendingRendersNoRows(t *testing.T) {
	html, err := RenderString(context.Background(), TagTable(Table{Status: "pending", IsFetching: true}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(html, "<table") || strings.Contains(html, "Showing") {
		t.Errorf("expected nothing rendered before first data, got:\n%s", html)
	}
	if !strings.Contains(html, `aria-busy="true"`) {
		t.Error("expected busy marker while fetching")
	}
}

func TestTagTable_PaginationButtons(t *testing.T) {
	html, err := RenderString(context.Background(), TagTable(Table{
		Status: "success", HasData: true, IsPlaceholder: true,
		Rows:  []tagapi.Tag{{Title: "Go", Slug: "go", AmountOfVideos: 4}},
		Items: 25, Showing: 1, Page: 3, Pages: 3,
		HasPrev: true, HasNext: false, PrevPage: 2, NextPage: 3, LastPage: 3,
		PageURL: "/tags/views/v1/page",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"4 videos", "Page 3 of 3", `value="2"`, "is-placeholder"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in:\n%s", want, html)
		}
	}
	if strings.Count(html, "disabled") != 2 {
		t.Errorf("expected next and last disabled on the last page, got %d disabled", strings.Count(html, "disabled"))
	}
}

func TestCreateForm_FieldError(t *testing.T) {
	ctx := layouts.SetCSRFToken(context.Background(), "tok")
	html, err := RenderString(ctx, CreateForm(Form{
		InstanceID:  "f2",
		Title:       "Go",
		Slug:        "go",
		FieldErrors: map[string]string{"title": "Minimum 3 characters."},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Minimum 3 characters.", `aria-invalid="true"`, `value="go" readonly`, "Tag Name", "Save", "Cancel"} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in:\n%s", want, html)
		}
	}
}

func TestCreated_IncludesToast(t *testing.T) {
	html, err := RenderString(context.Background(), Created(Form{InstanceID: "f3"}, "Tag created successfully!"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, `hx-swap-oob="true"`) || !strings.Contains(html, "Tag created successfully!") {
		t.Errorf("expected out-of-band toast, got:\n%s", html)
	}
	if strings.Contains(html, "field-error") {
		t.Error("expected a clean form")
	}
}

func TestErrorPage(t *testing.T) {
	html, err := RenderString(context.Background(), ErrorPage(404, "Not here."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<h1>404</h1>") || !strings.Contains(html, "Not here.") {
		t.Errorf("unexpected error page:\n%s", html)
	}
}

func TestVideoCount(t *testing.T) {
	tests := map[int]string{0: "0 videos", 1: "1 video", 12: "12 videos"}
	for n, want := range tests {
		if got := VideoCount(n); got != want {
			t.Errorf("VideoCount(%d) = %q, want %q", n, got, want)
		}
	}
}
