package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyxmakerx/tagdeck/internal/widgets/tags"
)

// RegisterRoutes sets up all application routes. This is the single place
// where routes are aggregated; widgets register their own on top.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// The tag list is the only screen.
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/tags")
	})

	// Health check endpoint for container orchestrators.
	e.GET("/healthz", a.healthz)

	if a.Config.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// --- Widget Routes ---
	api := e.Group("/api/v1")
	tags.RegisterRoutes(e, api, a.tagHandler, tags.RoutesConfig{
		CreatePerSecond: a.Config.RateLimit.CreatePerSecond,
		CreateBurst:     a.Config.RateLimit.CreateBurst,
	})
}

// healthz reports liveness. With the shared cache configured, Redis must
// answer a ping.
func (a *App) healthz(c echo.Context) error {
	status := map[string]string{"status": "ok", "redis": "disabled"}
	if a.Redis != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["status"] = "degraded"
			status["redis"] = "unreachable"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
		status["redis"] = "ok"
	}
	return c.JSON(http.StatusOK, status)
}
