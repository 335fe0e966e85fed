package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keyxmakerx/tagdeck/internal/config"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	a := New(cfg, nil)
	a.RegisterRoutes()
	t.Cleanup(a.Hub.Shutdown)
	return a
}

func TestRoutes_RootRedirectsAndHealth(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/tags" {
		t.Errorf("expected redirect to /tags, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"redis":"disabled"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrorHandler_APIValidationFields(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tags", strings.NewReader(`{"title":"Go"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Fields["title"] != "Minimum 3 characters." {
		t.Errorf("unexpected fields %v", body.Fields)
	}
}

func TestErrorHandler_HTMXRetargetsBody(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/tags/views/unknown/stream/nope", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec.Header().Get("HX-Retarget") != "body" {
		t.Error("expected HX-Retarget body")
	}
	if !strings.Contains(rec.Body.String(), "<h1>404</h1>") {
		t.Errorf("expected error page, got:\n%s", rec.Body.String())
	}
}

func TestErrorHandler_CSRFRejected(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/tags", strings.NewReader("title=Golang"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 without a CSRF token, got %d", rec.Code)
	}
}

func TestCORS_PreflightOnAPI(t *testing.T) {
	a := newTestApp(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tags", nil)
	req.Header.Set("Origin", a.Config.BaseURL)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != a.Config.BaseURL {
		t.Errorf("unexpected allow-origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
