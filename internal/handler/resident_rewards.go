package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/model"
	"github.com/iliyamo/barangay-rewards/internal/service"
)

// RewardsHandler serves the resident-facing endpoints: redeem, equip, the
// balance and inventory views, and the public catalog.  Every route except
// Catalog expects JWTAuth to have run.
type RewardsHandler struct {
	Svc *service.Service
	Log *logrus.Logger
}

// NewRewardsHandler panics when svc is nil, matching the other constructors.
func NewRewardsHandler(svc *service.Service, log *logrus.Logger) *RewardsHandler {
	if svc == nil {
		panic("nil service passed to NewRewardsHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RewardsHandler{Svc: svc, Log: log}
}

type redeemResponse struct {
	Success bool `json:"success"`
	*service.RedeemResult
}

// Redeem handles POST /v1/rewards/:id/redeem.  On success it returns 200
// with the debit, the new balance and whether the reward went straight into
// its slot.  When a frame or title was left unequipped because the slot is
// taken, needs_confirmation is true and current_equipped names the
// incumbent; the client confirms the swap through the equip endpoint.
func (h *RewardsHandler) Redeem(c echo.Context) error {
	residentID, err := getResidentID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	rewardID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid reward id")
	}
	res, err := h.Svc.Redeem(c.Request().Context(), residentID, rewardID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, redeemResponse{Success: true, RedeemResult: res})
}

type toggleResponse struct {
	Success bool `json:"success"`
	*service.ToggleResult
}

// ToggleEquip handles POST /v1/rewards/:id/equip.  It flips the equip state
// of an owned frame or title and returns the resulting snapshot.
func (h *RewardsHandler) ToggleEquip(c echo.Context) error {
	residentID, err := getResidentID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	rewardID, ok := parseID(c, "id")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid_reward", "invalid reward id")
	}
	res, err := h.Svc.ToggleEquip(c.Request().Context(), residentID, rewardID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toggleResponse{Success: true, ToggleResult: res})
}

type balanceResponse struct {
	Success bool `json:"success"`
	*model.PointsBalance
}

// Balance handles GET /v1/me/balance.
func (h *RewardsHandler) Balance(c echo.Context) error {
	residentID, err := getResidentID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	bal, err := h.Svc.GetBalance(c.Request().Context(), residentID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, balanceResponse{Success: true, PointsBalance: bal})
}

type ownedResponse struct {
	Success bool `json:"success"`
	*service.OwnedRewards
}

// MyRewards handles GET /v1/me/rewards: every redemption, newest first, and
// what is currently worn.
func (h *RewardsHandler) MyRewards(c echo.Context) error {
	residentID, err := getResidentID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	owned, err := h.Svc.ListOwned(c.Request().Context(), residentID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ownedResponse{Success: true, OwnedRewards: owned})
}

// Catalog handles GET /v1/rewards with an optional slot_category filter.
// It needs no authentication.
func (h *RewardsHandler) Catalog(c echo.Context) error {
	items, err := h.Svc.ListCatalog(c.Request().Context(), c.QueryParam("slot_category"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "items": items})
}
