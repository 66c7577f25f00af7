package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/docconv/internal/logging"
)

// RequestLogger writes one structured record per request.  5xx responses
// are logged at error level, everything else at info.
func RequestLogger(log *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			ev := log.Info()
			if status >= 500 {
				ev = log.Error().Err(err)
			}
			ev.Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", status).
				Int64("bytes_out", c.Response().Size).
				Str("remote_ip", c.RealIP()).
				Str("user_id", userID(c)).
				Dur("latency", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}
