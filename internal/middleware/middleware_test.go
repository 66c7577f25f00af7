package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/docconv/internal/config"
	"github.com/iliyamo/docconv/internal/utils"
)

const secret = "test-secret"

func newServer() *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(secret))
	g.GET("/whoami", func(c echo.Context) error {
		return c.String(http.StatusOK, userID(c))
	})
	g.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireRole(utils.RoleAdmin))
	return e
}

func do(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthSetsSubject(t *testing.T) {
	tok, err := utils.NewAccessToken(secret, 314, utils.RoleUser, time.Minute)
	require.NoError(t, err)
	rec := do(newServer(), "/v1/whoami", tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "314", rec.Body.String())
}

func TestJWTAuthRejects(t *testing.T) {
	e := newServer()
	assert.Equal(t, http.StatusUnauthorized, do(e, "/v1/whoami", "").Code)

	wrongKey, err := utils.NewAccessToken("other", 1, utils.RoleUser, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, "/v1/whoami", wrongKey.Token).Code)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": "USER"}).
		SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, "/v1/whoami", noExp).Code)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "USER", "exp": time.Now().Add(time.Minute).Unix()}).
		SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, "/v1/whoami", noSub).Code)
}

func TestRequireRole(t *testing.T) {
	e := newServer()
	user, err := utils.NewAccessToken(secret, 1, utils.RoleUser, time.Minute)
	require.NoError(t, err)
	admin, err := utils.NewAccessToken(secret, 2, utils.RoleAdmin, time.Minute)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(e, "/v1/admin", user.Token).Code)
	assert.Equal(t, http.StatusNoContent, do(e, "/v1/admin", admin.Token).Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/documents")
	c.Set("user_id", "77")

	cfg := config.RateLimitConfig{Prefix: "docconv:rl", KeyStrategy: "user_route"}
	assert.Equal(t, "docconv:rl:user:77:route:POST /v1/documents", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user"
	assert.Equal(t, "docconv:rl:user:77", buildRateKey(cfg, c))

	anon := e.NewContext(req, httptest.NewRecorder())
	assert.Equal(t, "docconv:rl:user:anon", buildRateKey(cfg, anon))
}

func TestTokenBucketDisabledWithoutRedis(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil)
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
