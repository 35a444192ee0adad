package router // package router registers the HTTP routes of the rewards API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barangay-rewards/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication and do
// not live under /v1.  Currently it exposes only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated catalog browse endpoint.
// Residents preview what they can redeem before signing in.
func RegisterPublic(e *echo.Echo, h *handler.RewardsHandler) {
	e.GET("/v1/rewards", h.Catalog)
}
