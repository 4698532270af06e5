package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a liveness check for load balancers.  It returns a plain text
// "ok" with 200 as long as the process serves requests.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Pinger is anything that can verify its backing storage.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ready returns a readiness check that fails with 503 while the movie
// document cannot be loaded.
func Ready(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := p.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	}
}
