package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barangay-rewards/internal/handler"
	"github.com/iliyamo/barangay-rewards/internal/middleware"
)

// RegisterResident registers resident-scoped endpoints under /v1.  All routes
// require a valid JWT; admins may call them too, acting on their own
// resident id.  limiter guards the two mutating endpoints only.
func RegisterResident(e *echo.Echo, h *handler.RewardsHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleResident, middleware.RoleAdmin),
	)
	g.POST("/rewards/:id/redeem", h.Redeem, limiter)
	g.POST("/rewards/:id/equip", h.ToggleEquip, limiter)
	g.GET("/me/balance", h.Balance)
	g.GET("/me/rewards", h.MyRewards)
}
