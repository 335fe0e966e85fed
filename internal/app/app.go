// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (tag API client, query
// cache, Redis client, Echo instance) and wires the tags widget into it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/tagdeck/internal/apperror"
	"github.com/keyxmakerx/tagdeck/internal/config"
	"github.com/keyxmakerx/tagdeck/internal/middleware"
	"github.com/keyxmakerx/tagdeck/internal/querycache"
	"github.com/keyxmakerx/tagdeck/internal/tagapi"
	"github.com/keyxmakerx/tagdeck/internal/templates/layouts"
	"github.com/keyxmakerx/tagdeck/internal/templates/pages"
	"github.com/keyxmakerx/tagdeck/internal/widgets/tags"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// Redis is the optional shared cache tier. Nil runs the cache in-process.
	Redis *redis.Client

	// Cache is the tag list query cache shared by every view.
	Cache *querycache.Client[tagapi.TagPage]

	// Hub holds the live views of open tag pages.
	Hub *tags.Hub

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	tagHandler *tags.Handler
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling. rdb may be nil.
func New(cfg *config.Config, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() returns the actual
	// client IP instead of the proxy's IP. Rate limiting keys on it.
	middleware.TrustedProxies(e, cfg.TrustedProxies)

	opts := querycache.Options{
		StaleTime: cfg.Query.StaleTime,
		GCTime:    cfg.Query.GCTime,
		Retry:     cfg.Query.Retry,
	}
	if rdb != nil {
		opts.Store = querycache.NewRedisStore(rdb, cfg.Redis.Prefix)
	}
	cache := querycache.NewClient[tagapi.TagPage](opts)

	api := tagapi.NewClient(cfg.TagAPI.URL, cfg.TagAPI.Timeout)
	service := tags.NewTagService(api, cache, cfg.TagAPI.PageSize)
	hub := tags.NewHub(service, cfg.Views.SearchDebounce, cfg.Views.IdleTimeout)

	app := &App{
		Config: cfg,
		Redis:  rdb,
		Cache:  cache,
		Hub:    hub,
		Echo:   e,
		tagHandler: tags.NewHandler(service, hub, tags.HandlerConfig{
			RestoreFilter: cfg.Views.RestoreFilter,
			Heartbeat:     cfg.Views.Heartbeat,
		}),
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	// Serve static files (CSS, JS).
	e.Static("/static", "static")

	// Copy layout data from the Echo context into the render context.
	middleware.LayoutInjector = func(c echo.Context, ctx context.Context) context.Context {
		ctx = layouts.SetAppName(ctx, cfg.AppName)
		ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
		ctx = layouts.SetActivePath(ctx, c.Request().URL.Path)
		if msg := middleware.GetFlash(c); msg != "" {
			ctx = layouts.SetFlashSuccess(ctx, msg)
		}
		return ctx
	}

	return app
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (flash) runs last.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	// Request logging -- log every request with method, path, status, latency.
	a.Echo.Use(middleware.RequestLogger())

	// Request metrics, labelled by route pattern.
	if a.Config.MetricsEnabled {
		a.Echo.Use(middleware.Metrics())
	}

	// Security headers -- CSP, X-Frame-Options, X-Content-Type-Options, etc.
	a.Echo.Use(middleware.SecurityHeaders())

	// CORS -- cross-origin calls to the JSON API only. Registered globally so
	// preflights, which have no route of their own, are answered too.
	origins := a.Config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{a.Config.BaseURL}
	}
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		PathPrefix:     "/api/",
		AllowedOrigins: origins,
	}))

	// CSRF -- double-submit cookie pattern on all state-changing requests.
	a.Echo.Use(middleware.CSRF())

	// Flash -- one-shot messages carried across redirects.
	a.Echo.Use(middleware.Flash())
}

// Run starts the background workers: cache eviction, idle view reaping and,
// with Redis configured, the cross-instance invalidation feed. It returns
// once they are started; they stop when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Cache.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribing to cache invalidations: %w", err)
	}
	go a.Cache.Run(ctx)
	go a.Hub.Run(ctx)
	return nil
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to appropriate HTTP responses, and renders error pages for
// browser requests or JSON for API requests.
//
// For HTMX partial requests that hit errors, we set HX-Retarget and
// HX-Reswap headers so the error page replaces the full body instead of
// being swapped into a partial target.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"
	var fields map[string]string

	// Check if it's our domain error type.
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		fields = appErr.Fields

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		// Check for Echo's built-in HTTP errors (e.g., 404 from router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = defaultErrorMessage(code)
			}
		} else {
			// Truly unexpected error -- log it.
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}
	}

	// API requests always get JSON.
	if isAPIRequest(c) {
		body := map[string]any{
			"error":   http.StatusText(code),
			"message": message,
		}
		if len(fields) > 0 {
			body["fields"] = fields
		}
		_ = c.JSON(code, body)
		return
	}

	// For HTMX errors, retarget to body so the full error page replaces the
	// entire page instead of landing in a partial target.
	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Retarget", "body")
		c.Response().Header().Set("HX-Reswap", "innerHTML")
	}

	_ = middleware.Render(c, code, pages.ErrorPage(code, message))
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist or has been moved."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusConflict:
		return "This action conflicts with the current state."
	case http.StatusUnprocessableEntity:
		return "The submitted data could not be processed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusInternalServerError:
		return "Something went wrong on our end. Please try again."
	case http.StatusBadGateway:
		return "The tag service returned an invalid response."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// isAPIRequest returns true if the request is targeting the API (JSON response expected).
func isAPIRequest(c echo.Context) bool {
	return len(c.Request().URL.Path) >= 4 && c.Request().URL.Path[:4] == "/api"
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting Tagdeck server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("tag_api", a.Config.TagAPI.URL),
		slog.Bool("shared_cache", a.Redis != nil),
	)
	return a.Echo.Start(addr)
}

// Shutdown closes every live view so open streams end, then drains the
// remaining in-flight requests.
func (a *App) Shutdown(ctx context.Context) error {
	a.Hub.Shutdown()
	return a.Echo.Shutdown(ctx)
}
