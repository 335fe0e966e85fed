package tags

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/tagdeck/internal/middleware"
)

// View actions are posted per keystroke, so they get a generous limit of
// their own.
const (
	viewActionsPerSecond = 20
	viewActionsBurst     = 40
)

// RoutesConfig holds per-route settings.
type RoutesConfig struct {
	// CreatePerSecond and CreateBurst limit tag creation per client IP.
	CreatePerSecond float64
	CreateBurst     int
}

// RegisterRoutes sets up the tag pages on e and the JSON API on api.
func RegisterRoutes(e *echo.Echo, api *echo.Group, h *Handler, cfg RoutesConfig) {
	createLimit := middleware.RateLimit(cfg.CreatePerSecond, cfg.CreateBurst)
	viewLimit := middleware.RateLimit(viewActionsPerSecond, viewActionsBurst)

	// Page and fragments.
	e.GET("/tags", h.Page)
	e.GET("/tags/new", h.NewForm)
	e.GET("/tags/slug", h.SlugPreview)
	e.GET("/tags/export", h.Export)
	e.POST("/tags", h.Create, createLimit)

	// Live view.
	v := e.Group("/tags/views/:viewId")
	v.GET("/stream", h.Stream)
	v.POST("/filter", h.Filter, viewLimit)
	v.POST("/page", h.GoToPage, viewLimit)
	v.POST("/retry", h.Retry, viewLimit)

	// JSON API.
	api.GET("/tags", h.APIList)
	api.POST("/tags", h.APICreate, createLimit)
}
