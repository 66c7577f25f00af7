package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/logging"
	"github.com/iliyamo/docconv/internal/plan"
	"github.com/iliyamo/docconv/internal/service"
)

// Converter is the service surface used by the HTTP handlers.
type Converter interface {
	Submit(ctx context.Context, userID int64, filename string, data []byte) (service.Result, error)
	Status(ctx context.Context, userID int64) (ledger.Status, error)
	SetPlan(ctx context.Context, userID int64, raw string) (plan.ID, error)
	MaxBytes() int64
}

// DocumentHandler accepts uploads.
type DocumentHandler struct {
	Conv Converter
	Log  *logging.Logger
}

// NewDocumentHandler builds a DocumentHandler.
func NewDocumentHandler(conv Converter, log *logging.Logger) *DocumentHandler {
	return &DocumentHandler{Conv: conv, Log: log}
}

type conversionResponse struct {
	JobID   string  `json:"job_id"`
	Plan    plan.ID `json:"plan"`
	Pages   int     `json:"pages"`
	Used    int     `json:"used"`
	Limit   int     `json:"limit"`
	Text    []byte  `json:"text"`
	Docx    []byte  `json:"docx,omitempty"`
	Partial bool    `json:"partial"`
	Warning string  `json:"warning,omitempty"`
}

// Upload handles POST /v1/documents with a multipart "file" field.  Text
// and DOCX are returned base64-encoded.
func (h *DocumentHandler) Upload(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart field \"file\" is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read upload"})
	}
	defer f.Close()

	// One byte past the limit is enough for the size check to trip.
	data, err := io.ReadAll(io.LimitReader(f, h.Conv.MaxBytes()+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot read upload"})
	}

	log := h.Log.WithUser(userID)
	res, err := h.Conv.Submit(c.Request().Context(), userID, fh.Filename, data)
	if err != nil {
		return storageFailure(c, log, err)
	}
	if !res.Completed {
		return rejection(c, res)
	}

	out := conversionResponse{
		JobID:   res.JobID,
		Plan:    res.Plan,
		Pages:   res.Pages,
		Used:    res.Used,
		Limit:   res.Limit,
		Text:    []byte(res.Text),
		Docx:    res.Docx,
		Partial: res.Partial,
	}
	if res.Partial {
		out.Warning = "DOCX could not be generated; text is attached"
	}
	return c.JSON(http.StatusOK, out)
}

func rejection(c echo.Context, res service.Result) error {
	body := echo.Map{"error": res.Detail, "reason": res.Reason}
	err := res.Err()
	switch {
	case errors.Is(err, service.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, body)
	case errors.Is(err, service.ErrUnsupportedType):
		return c.JSON(http.StatusUnsupportedMediaType, body)
	case errors.Is(err, service.ErrUnreadable), errors.Is(err, service.ErrNoExtractableText):
		return c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, service.ErrQuotaExceeded):
		body["used"] = res.Used
		body["limit"] = res.Limit
		body["plan"] = res.Plan
		return c.JSON(http.StatusTooManyRequests, body)
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
