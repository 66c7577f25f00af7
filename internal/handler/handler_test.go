package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/logging"
	"github.com/iliyamo/docconv/internal/plan"
	"github.com/iliyamo/docconv/internal/service"
)

type fakeConverter struct {
	result service.Result
	err    error
	status ledger.Status
	plans  map[int64]plan.ID

	gotUser int64
	gotName string
	gotData []byte
}

func (f *fakeConverter) Submit(_ context.Context, userID int64, filename string, data []byte) (service.Result, error) {
	f.gotUser, f.gotName, f.gotData = userID, filename, data
	return f.result, f.err
}

func (f *fakeConverter) Status(context.Context, int64) (ledger.Status, error) {
	return f.status, f.err
}

func (f *fakeConverter) SetPlan(_ context.Context, userID int64, raw string) (plan.ID, error) {
	if f.err != nil {
		return "", f.err
	}
	p, err := plan.Default().Parse(raw)
	if err != nil {
		return "", err
	}
	if f.plans == nil {
		f.plans = map[int64]plan.ID{}
	}
	f.plans[userID] = p
	return p, nil
}

func (f *fakeConverter) MaxBytes() int64 { return 64 }

// serve runs h with user_id preset, as JWTAuth would.
func serve(h echo.HandlerFunc, req *http.Request, user string, path string, params ...string) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}
	if user != "" {
		c.Set("user_id", user)
	}
	_ = h(c)
	return rec
}

func uploadRequest(t *testing.T, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestUploadCompleted(t *testing.T) {
	conv := &fakeConverter{result: service.Result{
		Completed: true, JobID: "j1", Text: "hello", Docx: []byte("PK"), Pages: 5, Plan: plan.Premium, Used: 5, Limit: 1000,
	}}
	h := NewDocumentHandler(conv, logging.Nop())
	rec := serve(h.Upload, uploadRequest(t, "r.pdf", []byte("%PDF")), "42", "/v1/documents")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), conv.gotUser)
	assert.Equal(t, "r.pdf", conv.gotName)
	assert.Equal(t, []byte("%PDF"), conv.gotData)

	m := decode(t, rec)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), m["text"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("PK")), m["docx"])
	assert.Equal(t, float64(5), m["pages"])
	assert.Equal(t, false, m["partial"])
}

func TestUploadPartialHasWarning(t *testing.T) {
	conv := &fakeConverter{result: service.Result{Completed: true, Text: "t", Partial: true, Pages: 1}}
	rec := serve(NewDocumentHandler(conv, logging.Nop()).Upload, uploadRequest(t, "r.pdf", []byte("x")), "1", "/v1/documents")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, true, m["partial"])
	assert.NotEmpty(t, m["warning"])
	_, hasDocx := m["docx"]
	assert.False(t, hasDocx)
}

func TestUploadTruncatesPastLimit(t *testing.T) {
	conv := &fakeConverter{result: service.Result{Reason: service.ReasonTooLarge, Detail: "too big"}}
	rec := serve(NewDocumentHandler(conv, logging.Nop()).Upload, uploadRequest(t, "r.pdf", make([]byte, 500)), "1", "/v1/documents")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Len(t, conv.gotData, 65)
}

func TestUploadRejectionStatusCodes(t *testing.T) {
	cases := map[service.Reason]int{
		service.ReasonTooLarge:          http.StatusRequestEntityTooLarge,
		service.ReasonUnsupportedType:   http.StatusUnsupportedMediaType,
		service.ReasonUnreadable:        http.StatusUnprocessableEntity,
		service.ReasonNoExtractableText: http.StatusUnprocessableEntity,
		service.ReasonQuotaExceeded:     http.StatusTooManyRequests,
	}
	for reason, code := range cases {
		t.Run(string(reason), func(t *testing.T) {
			conv := &fakeConverter{result: service.Result{Reason: reason, Detail: "no", Used: 8, Limit: 10}}
			rec := serve(NewDocumentHandler(conv, logging.Nop()).Upload, uploadRequest(t, "r.pdf", []byte("x")), "1", "/v1/documents")
			assert.Equal(t, code, rec.Code)
			m := decode(t, rec)
			assert.Equal(t, string(reason), m["reason"])
			if reason == service.ReasonQuotaExceeded {
				assert.Equal(t, float64(8), m["used"])
				assert.Equal(t, float64(10), m["limit"])
			}
		})
	}
}

func TestUploadStorageUnavailable(t *testing.T) {
	conv := &fakeConverter{err: errors.Join(ledger.ErrStorageUnavailable, errors.New("down"))}
	rec := serve(NewDocumentHandler(conv, logging.Nop()).Upload, uploadRequest(t, "r.pdf", []byte("x")), "1", "/v1/documents")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadRequiresFileAndUser(t *testing.T) {
	h := NewDocumentHandler(&fakeConverter{}, logging.Nop())
	rec := serve(h.Upload, uploadRequest(t, "r.pdf", []byte("x")), "", "/v1/documents")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = serve(h.Upload, req, "1", "/v1/documents")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlan(t *testing.T) {
	conv := &fakeConverter{status: ledger.Status{Plan: plan.Basic, Used: 4, Limit: 30, Remaining: 26, Day: "2026-10-19"}}
	rec := serve(NewAccountHandler(conv, logging.Nop()).GetPlan, httptest.NewRequest(http.MethodGet, "/v1/plan", nil), "3", "/v1/plan")
	require.Equal(t, http.StatusOK, rec.Code)
	m := decode(t, rec)
	assert.Equal(t, "BASIC", m["plan"])
	assert.Equal(t, float64(26), m["remaining"])
}

func TestAdminSetPlan(t *testing.T) {
	conv := &fakeConverter{}
	h := NewAccountHandler(conv, logging.Nop())
	put := func(id, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/v1/admin/users/"+id+"/plan", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return serve(h.SetPlan, req, "1", "/v1/admin/users/:id/plan", "id", id)
	}

	assert.Equal(t, http.StatusNoContent, put("9", `{"plan":"pro"}`).Code)
	assert.Equal(t, plan.Pro, conv.plans[9])
	assert.Equal(t, http.StatusBadRequest, put("9", `{"plan":"GOLD"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put("x", `{"plan":"PRO"}`).Code)
	assert.Equal(t, http.StatusBadRequest, put("9", `{}`).Code)
	assert.Equal(t, plan.Pro, conv.plans[9])
}

type echoDispatcher struct{ err error }

func (d echoDispatcher) Dispatch(_ context.Context, userID int64, text string) (string, error) {
	return text + " from " + strings.Repeat("*", int(userID)), d.err
}

func TestCommandEndpoint(t *testing.T) {
	h := NewCommandHandler(echoDispatcher{}, logging.Nop())
	req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(`{"text":"/plan"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := serve(h.Run, req, "2", "/v1/commands")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/plan from **", decode(t, rec)["reply"])

	req = httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(`{"text":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, serve(h.Run, req, "2", "/v1/commands").Code)

	h = NewCommandHandler(echoDispatcher{err: ledger.ErrStorageUnavailable}, logging.Nop())
	req = httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(`{"text":"/plan"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.Run, req, "2", "/v1/commands").Code)
}

func TestGetUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	for _, v := range []any{"12", int64(12), float64(12)} {
		c.Set("user_id", v)
		id, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, int64(12), id)
	}
	for _, v := range []any{nil, "abc", "0", int64(-1), true} {
		c.Set("user_id", v)
		_, err := getUserID(c)
		assert.Error(t, err)
	}
}
