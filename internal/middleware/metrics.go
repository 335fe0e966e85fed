package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/tagdeck/internal/apperror"
	"github.com/keyxmakerx/tagdeck/internal/metrics"
)

// Metrics returns middleware that records request counts, latency, and
// in-flight requests. The route pattern (c.Path()) is the label, never the
// raw URL, so view IDs and filters don't explode cardinality.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			inflight := metrics.HTTPInFlight()
			inflight.Inc()
			defer inflight.Dec()

			start := time.Now()
			err := next(c)

			// The error handler runs after middleware, so derive the status
			// it is about to write from the error itself.
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = errorStatus(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}

// errorStatus returns the HTTP status an error will be rendered with.
func errorStatus(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperror.SafeCode(err)
}
