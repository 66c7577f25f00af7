// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/docconv/internal/handler"
	"github.com/iliyamo/docconv/internal/middleware"
	"github.com/iliyamo/docconv/internal/utils"
)

// multipartOverhead is allowed on top of the document limit for form
// boundaries and headers.
const multipartOverhead = 1 << 20

// RegisterRoutes registers endpoints that need no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// UserRoutes groups what RegisterUser needs.
type UserRoutes struct {
	Documents *handler.DocumentHandler
	Accounts  *handler.AccountHandler
	Commands  *handler.CommandHandler
	// RateLimit guards uploads; nil disables it.
	RateLimit echo.MiddlewareFunc
	MaxUpload int64
}

// RegisterUser registers endpoints available to any authenticated user.
func RegisterUser(e *echo.Echo, r UserRoutes, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleUser, utils.RoleAdmin),
	)

	upload := []echo.MiddlewareFunc{echomw.BodyLimit(strconv.FormatInt(r.MaxUpload+multipartOverhead, 10))}
	if r.RateLimit != nil {
		upload = append(upload, r.RateLimit)
	}
	g.POST("/documents", r.Documents.Upload, upload...)
	g.GET("/plan", r.Accounts.GetPlan)
	g.POST("/commands", r.Commands.Run)
}

// RegisterAdmin registers plan administration under /v1/admin.  Requires
// the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AccountHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.PUT("/users/:id/plan", a.SetPlan)
}
