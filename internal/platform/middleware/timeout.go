package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout bounds each request with a context deadline and answers 504
// when the handler has not finished in time. Handlers see the deadline
// through the request context and should stop work when it fires.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			var err error
			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				rid, _ := c.Get("request_id").(string)
				return c.JSON(http.StatusGatewayTimeout, ErrorBody{
					Error:     "request exceeded the allowed processing time",
					RequestID: rid,
				})
			}
			return err
		}
	}
}
