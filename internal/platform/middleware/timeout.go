package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds each request with a context deadline. The handler
// runs on the request goroutine and must return once its context is done;
// record lookups do so through the pgx context. If the deadline passed and
// nothing has been written yet, the caller gets 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return gatewayTimeoutError(c)
			}
			return err
		}
	}
}

func gatewayTimeoutError(c echo.Context) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(http.StatusGatewayTimeout, map[string]string{
		"message": "request processing exceeded the allowed time limit",
	})
}
