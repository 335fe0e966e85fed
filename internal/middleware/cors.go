package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// PathPrefix limits CORS handling to requests under it, e.g. "/api/".
	// The HTMX pages are same-origin and never get CORS headers.
	PathPrefix string

	// AllowedOrigins lists origins allowed to call the API from a browser.
	// "*" allows any origin.
	AllowedOrigins []string

	// MaxAge is how long browsers may cache a preflight answer.
	MaxAge time.Duration
}

// The JSON API takes and returns JSON with no cookies or auth headers, so
// the CORS surface is fixed and credentials are never allowed.
var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	corsHeaders = strings.Join([]string{echo.HeaderContentType, echo.HeaderAccept}, ", ")
)

// CORS returns middleware that answers cross-origin calls to the JSON API.
// Allowed origins get the Access-Control headers and a 204 for preflights.
// Preflights from any other origin are refused with 403; simple requests
// from them pass through without headers and the browser blocks the read.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	allowAll := false
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
			continue
		}
		if o != "" {
			origins[o] = true
		}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	maxAge := strconv.Itoa(int(cfg.MaxAge.Seconds()))

	if allowAll {
		slog.Warn("CORS allows every origin on the JSON API", slog.String("prefix", cfg.PathPrefix))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, cfg.PathPrefix) {
				return next(c)
			}

			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" {
				return next(c)
			}

			res := c.Response()
			res.Header().Add(echo.HeaderVary, echo.HeaderOrigin)
			preflight := req.Method == http.MethodOptions &&
				req.Header.Get(echo.HeaderAccessControlRequestMethod) != ""

			if !allowAll && !origins[origin] {
				if preflight {
					slog.Debug("rejected CORS preflight",
						slog.String("origin", origin),
						slog.String("path", req.URL.Path),
					)
					return c.NoContent(http.StatusForbidden)
				}
				return next(c)
			}

			res.Header().Set(echo.HeaderAccessControlAllowOrigin, origin)
			if preflight {
				res.Header().Set(echo.HeaderAccessControlAllowMethods, corsMethods)
				res.Header().Set(echo.HeaderAccessControlAllowHeaders, corsHeaders)
				res.Header().Set(echo.HeaderAccessControlMaxAge, maxAge)
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
