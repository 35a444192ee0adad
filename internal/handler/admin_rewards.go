package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/service"
)

// AdminRewardsHandler maintains the reward catalog.  Routes are mounted
// behind JWTAuth and RequireRole(ADMIN).
type AdminRewardsHandler struct {
	Svc *service.Service
	Log *logrus.Logger
}

func NewAdminRewardsHandler(svc *service.Service, log *logrus.Logger) *AdminRewardsHandler {
	if svc == nil {
		panic("nil service passed to NewAdminRewardsHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AdminRewardsHandler{Svc: svc, Log: log}
}

// List handles GET /v1/admin/rewards, archived entries included.
func (h *AdminRewardsHandler) List(c echo.Context) error {
	items, err := h.Svc.ListRewards(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "items": items})
}

// Get handles GET /v1/admin/rewards/:id.
func (h *AdminRewardsHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid reward id")
	}
	rw, err := h.Svc.GetReward(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reward": rw})
}

// Create handles POST /v1/admin/rewards and returns 201 with the stored row.
func (h *AdminRewardsHandler) Create(c echo.Context) error {
	var in service.RewardInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid request body")
	}
	rw, err := h.Svc.CreateReward(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "reward": rw})
}

// Update handles PUT /v1/admin/rewards/:id.  The body replaces every
// editable field.
func (h *AdminRewardsHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid reward id")
	}
	var in service.RewardInput
	if err := c.Bind(&in); err != nil {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid request body")
	}
	rw, err := h.Svc.UpdateReward(c.Request().Context(), id, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reward": rw})
}

// Archive handles POST /v1/admin/rewards/:id/archive.
func (h *AdminRewardsHandler) Archive(c echo.Context) error { return h.setArchived(c, true) }

// Unarchive handles POST /v1/admin/rewards/:id/unarchive.
func (h *AdminRewardsHandler) Unarchive(c echo.Context) error { return h.setArchived(c, false) }

func (h *AdminRewardsHandler) setArchived(c echo.Context, archived bool) error {
	id, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid reward id")
	}
	rw, err := h.Svc.SetRewardArchived(c.Request().Context(), id, archived)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "reward": rw})
}
