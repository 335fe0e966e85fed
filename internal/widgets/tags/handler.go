package tags

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/tagdeck/internal/apperror"
	"github.com/keyxmakerx/tagdeck/internal/middleware"
	"github.com/keyxmakerx/tagdeck/internal/querycache"
	"github.com/keyxmakerx/tagdeck/internal/sanitize"
	"github.com/keyxmakerx/tagdeck/internal/slug"
	"github.com/keyxmakerx/tagdeck/internal/sse"
	"github.com/keyxmakerx/tagdeck/internal/templates/pages"
)

// defaultHeartbeat keeps idle streams alive through proxies.
const defaultHeartbeat = 15 * time.Second

// HandlerConfig holds the page settings handlers need.
type HandlerConfig struct {
	// RestoreFilter seeds the search input from the URL title on page load.
	RestoreFilter bool

	// Heartbeat is the interval between stream keep-alive comments.
	Heartbeat time.Duration
}

// Handler handles HTTP requests for the tag pages and API. Handlers are
// thin: bind request, call service or view, render response.
type Handler struct {
	service TagService
	hub     *Hub
	cfg     HandlerConfig
}

// NewHandler creates a new tag handler.
func NewHandler(service TagService, hub *Hub, cfg HandlerConfig) *Handler {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}
	return &Handler{service: service, hub: hub, cfg: cfg}
}

// --- Page ---

// Page renders the tag list (GET /tags). The first page is fetched before
// rendering; the live view takes over from there.
func (h *Handler) Page(c echo.Context) error {
	st := stateFromQuery(c.QueryParams(), h.cfg.RestoreFilter)
	return h.renderPage(c, http.StatusOK, st, pages.Form{})
}

// Stream pushes the view's table and URL to the browser (GET
// /tags/views/:viewId/stream). An unknown view gets an "expired" event so
// the page reloads with a fresh one.
func (h *Handler) Stream(c echo.Context) error {
	stream, err := sse.Start(c.Response())
	if err != nil {
		return apperror.NewInternal(err)
	}

	view, ok := h.hub.Get(c.Param("viewId"))
	if !ok {
		_ = stream.Send("expired", "unknown view")
		return nil
	}

	updates, detach := view.Subscribe()
	defer detach()

	ctx := c.Request().Context()
	heartbeat := time.NewTicker(h.cfg.Heartbeat)
	defer heartbeat.Stop()

	var lastTable, lastURL string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-view.Done():
			_ = stream.Send("expired", "view closed")
			return nil
		case <-heartbeat.C:
			if err := stream.Comment("heartbeat"); err != nil {
				return nil
			}
		case snap := <-updates:
			html, err := pages.RenderString(ctx, pages.TagTable(tableFor(view.ID(), snap)))
			if err != nil {
				slog.Error("failed to render tag table", slog.String("view", view.ID()), slog.Any("error", err))
				continue
			}
			if html != lastTable {
				if err := stream.Send("table", html); err != nil {
					return nil
				}
				lastTable = html
			}
			if u := "?" + snap.State.Encode(); u != lastURL {
				if err := stream.Send("url", u); err != nil {
					return nil
				}
				lastURL = u
			}
		}
	}
}

// Filter records a keystroke in the search input (POST
// /tags/views/:viewId/filter).
func (h *Handler) Filter(c echo.Context) error {
	view, err := h.view(c)
	if err != nil {
		return err
	}
	view.Type(sanitize.Filter(c.FormValue("title")))
	return c.NoContent(http.StatusNoContent)
}

// GoToPage changes the view's page (POST /tags/views/:viewId/page).
func (h *Handler) GoToPage(c echo.Context) error {
	view, err := h.view(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.FormValue("page"))
	if err != nil {
		return apperror.NewBadRequest("invalid page number")
	}
	view.GoToPage(n)
	return c.NoContent(http.StatusNoContent)
}

// Retry refetches the view's current page (POST /tags/views/:viewId/retry).
func (h *Handler) Retry(c echo.Context) error {
	view, err := h.view(c)
	if err != nil {
		return err
	}
	view.Retry()
	return c.NoContent(http.StatusNoContent)
}

// --- Create ---

// NewForm renders an empty creation form (GET /tags/new).
func (h *Handler) NewForm(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, pages.CreateForm(pages.Form{InstanceID: uuid.NewString()}))
}

// SlugPreview renders the slug derived from the typed title (GET /tags/slug).
func (h *Handler) SlugPreview(c echo.Context) error {
	return middleware.Render(c, http.StatusOK, pages.SlugField(slug.Make(sanitize.Text(c.QueryParam("title")))))
}

// Create creates a tag from the dialog form (POST /tags). HTMX requests get
// the form fragment back: reset with a toast on success, or with inline
// errors. Plain form posts are redirected to the list with a flash message.
func (h *Handler) Create(c echo.Context) error {
	var in CreateTagInput
	if err := c.Bind(&in); err != nil {
		return apperror.NewBadRequest("invalid form data")
	}

	if _, err := h.service.Create(c.Request().Context(), in); err != nil {
		appErr, ok := apperror.AsAppError(err)
		if !ok || appErr.Code == http.StatusInternalServerError {
			return err
		}
		form := failedForm(in, appErr)
		if middleware.IsHTMX(c) {
			return middleware.Render(c, appErr.Code, pages.CreateForm(form))
		}
		return h.renderPage(c, appErr.Code, State{Page: 1}, form)
	}

	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Trigger", "tagCreated")
		return middleware.Render(c, http.StatusCreated, pages.Created(pages.Form{InstanceID: uuid.NewString()}, CreatedMessage))
	}

	middleware.SetFlash(c, CreatedMessage)
	return c.Redirect(http.StatusSeeOther, "/tags")
}

// Export downloads the current page as CSV (GET /tags/export).
func (h *Handler) Export(c echo.Context) error {
	st := stateFromQuery(c.QueryParams(), true)
	page, err := h.service.List(c.Request().Context(), st.DebouncedFilter, st.Page)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="tags-page-%d.csv"`, st.Page))
	res.WriteHeader(http.StatusOK)

	w := csv.NewWriter(res)
	if err := w.Write([]string{"id", "title", "slug", "amountOfVideos"}); err != nil {
		return err
	}
	for _, t := range page.Data {
		row := []string{csvCell(t.ID), csvCell(t.Title), csvCell(t.Slug), strconv.Itoa(t.AmountOfVideos)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// --- JSON API ---

// APIList returns one page of tags as JSON (GET /api/v1/tags).
func (h *Handler) APIList(c echo.Context) error {
	st := stateFromQuery(c.QueryParams(), true)
	page, err := h.service.List(c.Request().Context(), st.DebouncedFilter, st.Page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newListResponse(st, page))
}

// APICreate creates a tag from a JSON body (POST /api/v1/tags).
func (h *Handler) APICreate(c echo.Context) error {
	var in CreateTagInput
	if err := json.NewDecoder(c.Request().Body).Decode(&in); err != nil {
		return apperror.NewBadRequest("invalid JSON body")
	}

	tag, err := h.service.Create(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tag)
}

// --- Helpers ---

func (h *Handler) view(c echo.Context) (*View, error) {
	view, ok := h.hub.Get(c.Param("viewId"))
	if !ok {
		return nil, apperror.NewNotFound("This page has expired. Reload to continue.")
	}
	return view, nil
}

// renderPage opens a live view for st and renders the full page around it.
func (h *Handler) renderPage(c echo.Context, status int, st State, form pages.Form) error {
	_, fetchErr := h.service.List(c.Request().Context(), st.DebouncedFilter, st.Page)

	view := h.hub.Open(st)
	snap := view.Snapshot()

	table := tableFor(view.ID(), snap)
	if snap.Result.Status == querycache.StatusPending && fetchErr != nil {
		table.Status = querycache.StatusError.String()
		table.ErrorMessage = apperror.SafeMessage(fetchErr)
	}

	return middleware.Render(c, status, pages.Tags(pages.TagsPage{
		ViewID:    view.ID(),
		Filter:    st.Filter,
		StreamURL: viewPath(view.ID(), "stream"),
		FilterURL: viewPath(view.ID(), "filter"),
		ExportURL: "/tags/export?" + st.Encode(),
		Table:     table,
		Form:      form,
	}))
}

// failedForm re-renders submitted input with the error that rejected it.
func failedForm(in CreateTagInput, appErr *apperror.AppError) pages.Form {
	title := sanitize.Text(in.Title)
	form := pages.Form{
		InstanceID: in.FormID,
		Title:      title,
		Slug:       slug.Make(title),
		Open:       true,
	}
	if form.InstanceID == "" {
		form.InstanceID = uuid.NewString()
	}
	if apperror.IsValidation(appErr) && len(appErr.Fields) > 0 {
		form.FieldErrors = appErr.Fields
	} else {
		form.Error = appErr.Message
	}
	return form
}

// tableFor maps a snapshot to the table fragment. Paging is computed from
// the view's page, so a placeholder keeps its rows while the footer already
// shows the requested page.
func tableFor(viewID string, snap Snapshot) pages.Table {
	res := snap.Result
	t := pages.Table{
		Status:        res.Status.String(),
		HasData:       res.HasData,
		IsPlaceholder: res.IsPlaceholder,
		IsFetching:    res.IsFetching,
		PageURL:       viewPath(viewID, "page"),
		RetryURL:      viewPath(viewID, "retry"),
	}
	if res.Status == querycache.StatusError {
		t.ErrorMessage = apperror.SafeMessage(res.Err)
	}
	if !res.HasData {
		return t
	}

	data := res.Data
	t.Rows = data.Data
	t.Items = data.Items
	t.Showing = len(data.Data)
	t.Page = max(1, snap.State.Page)
	t.Pages = max(1, data.Pages)
	t.HasPrev = t.Page > 1
	t.HasNext = t.Page < t.Pages
	t.PrevPage = max(1, t.Page-1)
	t.NextPage = min(t.Pages, t.Page+1)
	t.LastPage = t.Pages
	return t
}

func viewPath(viewID, action string) string {
	return "/tags/views/" + url.PathEscape(viewID) + "/" + action
}

// stateFromQuery reads the list state from URL parameters, with the title
// reduced to plain text.
func stateFromQuery(q url.Values, restoreFilter bool) State {
	values := url.Values{
		"page":  {q.Get("page")},
		"title": {sanitize.Filter(q.Get("title"))},
	}
	return StateFromURL(values, restoreFilter)
}

// csvCell neutralizes values a spreadsheet would evaluate as a formula.
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
