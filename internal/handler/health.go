package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Health answers load balancer checks.  It fails with 503 when the
// storage backend does not answer within a second.
func Health(ping Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, envelope{Status: statusError, Message: "storage unavailable", Code: "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, envelope{Status: statusSuccess, Message: "ok"})
	}
}
