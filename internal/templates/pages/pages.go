// Package pages holds Tagdeck's page and fragment components. Markup lives in
// embedded html/template files and is exposed as templ components so
// handlers render everything through middleware.Render.
package pages

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/keyxmakerx/tagdeck/internal/tagapi"
	"github.com/keyxmakerx/tagdeck/internal/templates/layouts"
)

//go:embed html/*.html
var files embed.FS

var funcs = template.FuncMap{
	"videos": VideoCount,
}

// partials holds the layout and every fragment. Pages are clones of it with
// their own "content" block, all built at init before any execution.
var (
	partials  = template.Must(template.New("partials").Funcs(funcs).ParseFS(files, "html/base.html", "html/partials.html"))
	tagsPage  = mustPage("html/tags.html")
	errorPage = mustPage("html/error.html")
)

func mustPage(file string) *template.Template {
	return template.Must(template.Must(partials.Clone()).ParseFS(files, file))
}

// --- View models ---

// TagsPage is the full tag list screen.
type TagsPage struct {
	ViewID    string
	Filter    string
	StreamURL string
	FilterURL string
	ExportURL string
	Table     Table
	Form      Form
}

// Table is the tag table plus its pagination footer.
type Table struct {
	// Status is "pending", "success" or "error".
	Status        string
	HasData       bool
	IsPlaceholder bool
	IsFetching    bool
	ErrorMessage  string

	Rows    []tagapi.Tag
	Items   int
	Showing int
	Page    int
	Pages   int

	HasPrev  bool
	HasNext  bool
	PrevPage int
	NextPage int
	LastPage int

	PageURL  string
	RetryURL string
}

// Form is the tag creation form.
type Form struct {
	InstanceID  string
	Title       string
	Slug        string
	FieldErrors map[string]string
	Error       string
	Open        bool

	// CSRFToken is filled from the render context.
	CSRFToken string
}

type errorData struct {
	Code    int
	Message string
}

type createdData struct {
	Form    Form
	Message string
}

// pageData is what the base layout executes with.
type pageData struct {
	Title  string
	Layout layouts.Data
	Page   any
}

// --- Components ---

// Tags renders the full tag list page.
func Tags(p TagsPage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p.Form.CSRFToken = layouts.GetCSRFToken(ctx)
		return page(tagsPage, "Tags", p).Render(ctx, w)
	})
}

// ErrorPage renders a full error page.
func ErrorPage(code int, message string) templ.Component {
	return page(errorPage, strconv.Itoa(code), errorData{Code: code, Message: message})
}

// TagTable renders the table fragment pushed over the view stream.
func TagTable(t Table) templ.Component {
	return templ.FromGoHTML(partials.Lookup("table"), t)
}

// CreateForm renders the creation form fragment.
func CreateForm(f Form) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f.CSRFToken = layouts.GetCSRFToken(ctx)
		return templ.FromGoHTML(partials.Lookup("form"), f).Render(ctx, w)
	})
}

// Created renders a fresh form plus an out-of-band toast.
func Created(f Form, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f.CSRFToken = layouts.GetCSRFToken(ctx)
		return templ.FromGoHTML(partials.Lookup("created"), createdData{Form: f, Message: message}).Render(ctx, w)
	})
}

// SlugField renders the read-only slug input.
func SlugField(slug string) templ.Component {
	return templ.FromGoHTML(partials.Lookup("slug"), slug)
}

// RenderString renders c into a string, for payloads that are not written
// straight to a response (SSE events).
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// VideoCount formats a video count with the right plural.
func VideoCount(n int) string {
	if n == 1 {
		return "1 video"
	}
	return strconv.Itoa(n) + " videos"
}

func page(t *template.Template, title string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pd := pageData{Title: title, Layout: layouts.FromContext(ctx), Page: data}
		return templ.FromGoHTML(t.Lookup("base"), pd).Render(ctx, w)
	})
}
