package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
)

// latencyMiddleware delays every response by d, giving clients a chance to supersede in-flight requests.
// A request cancelled by its client returns early.
func latencyMiddleware(d time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return next(ctx)
			case <-ctx.Request().Context().Done():
				return ctx.Request().Context().Err()
			}
		}
	}
}
