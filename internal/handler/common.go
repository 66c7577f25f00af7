// Package handler exposes the conversion service over HTTP.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/logging"
)

var errNoUser = errors.New("invalid user_id in context")

// getUserID reads the subject stored by the JWT middleware.
func getUserID(c echo.Context) (int64, error) {
	switch t := c.Get("user_id").(type) {
	case int64:
		if t > 0 {
			return t, nil
		}
	case float64:
		if t > 0 {
			return int64(t), nil
		}
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoUser
}

// storageFailure maps errors that leave the outcome unknown.  Storage
// outages are retryable (503); anything else is a 500.
func storageFailure(c echo.Context, log *logging.Logger, err error) error {
	if errors.Is(err, ledger.ErrStorageUnavailable) {
		log.Error().Err(err).Str("path", c.Path()).Msg("storage unavailable")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable, try again later"})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
