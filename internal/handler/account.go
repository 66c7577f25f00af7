package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/docconv/internal/logging"
	"github.com/iliyamo/docconv/internal/plan"
)

// AccountHandler serves plan status and plan administration.
type AccountHandler struct {
	Conv Converter
	Log  *logging.Logger
}

// NewAccountHandler builds an AccountHandler.
func NewAccountHandler(conv Converter, log *logging.Logger) *AccountHandler {
	return &AccountHandler{Conv: conv, Log: log}
}

// GetPlan handles GET /v1/plan.
func (h *AccountHandler) GetPlan(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	st, err := h.Conv.Status(c.Request().Context(), userID)
	if err != nil {
		return storageFailure(c, h.Log.WithUser(userID), err)
	}
	return c.JSON(http.StatusOK, st)
}

// SetPlan handles PUT /v1/admin/users/:id/plan with body {"plan": "..."}.
func (h *AccountHandler) SetPlan(c echo.Context) error {
	target, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || target <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var body struct {
		Plan string `json:"plan"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Plan == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plan is required"})
	}
	p, err := h.Conv.SetPlan(c.Request().Context(), target, body.Plan)
	if errors.Is(err, plan.ErrInvalidPlan) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plan"})
	}
	if err != nil {
		return storageFailure(c, h.Log.WithUser(target), err)
	}
	admin, _ := getUserID(c)
	h.Log.Info().Int64("admin_id", admin).Int64("user_id", target).Str("plan", string(p)).Msg("plan changed")
	return c.NoContent(http.StatusNoContent)
}
