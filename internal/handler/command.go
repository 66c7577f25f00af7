package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/docconv/internal/logging"
)

// Dispatcher answers slash commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, text string) (string, error)
}

// CommandHandler exposes the command dispatcher over HTTP.
type CommandHandler struct {
	Commands Dispatcher
	Log      *logging.Logger
}

// NewCommandHandler builds a CommandHandler.
func NewCommandHandler(d Dispatcher, log *logging.Logger) *CommandHandler {
	return &CommandHandler{Commands: d, Log: log}
}

// Run handles POST /v1/commands with body {"text": "/plan"}.
func (h *CommandHandler) Run(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.Text) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "text is required"})
	}
	reply, err := h.Commands.Dispatch(c.Request().Context(), userID, body.Text)
	if err != nil {
		return storageFailure(c, h.Log.WithUser(userID), err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reply": reply})
}
