package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barangay-rewards/internal/handler"
	"github.com/iliyamo/barangay-rewards/internal/middleware"
)

// RegisterAdmin registers catalog maintenance endpoints under /v1/admin.
// Only the ADMIN role may call them.
func RegisterAdmin(e *echo.Echo, h *handler.AdminRewardsHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	)
	g.GET("/rewards", h.List)
	g.POST("/rewards", h.Create)
	g.GET("/rewards/:id", h.Get)
	g.PUT("/rewards/:id", h.Update)
	g.POST("/rewards/:id/archive", h.Archive)
	g.POST("/rewards/:id/unarchive", h.Unarchive)
}
