package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/barangay-rewards/internal/middleware"
	"github.com/iliyamo/barangay-rewards/internal/service"
)

var errInvalidResident = errors.New("invalid resident_id in context")

// getResidentID returns the resident id JWTAuth stored on the context.
func getResidentID(c echo.Context) (int64, error) {
	id, ok := middleware.ResidentID(c)
	if !ok {
		return 0, errInvalidResident
	}
	return id, nil
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// statusFor maps a service error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case "resident_not_found", "reward_not_found", "not_redeemed":
		return http.StatusNotFound
	case "already_redeemed", "concurrency_conflict":
		return http.StatusConflict
	case "insufficient_points", "reward_unavailable", "not_equippable":
		return http.StatusUnprocessableEntity
	case "invalid_slot", "invalid_reward":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes the standard failure body.
func fail(c echo.Context, status int, kind, message string) error {
	return c.JSON(status, echo.Map{"success": false, "error": kind, "message": message})
}

// writeError reports err to the client.  Known service errors carry their
// own message; anything else is logged and surfaced as a bare 500 so no
// driver or SQL detail leaks.
func writeError(c echo.Context, log *logrus.Logger, err error) error {
	if kind := service.Kind(err); kind != "" {
		return fail(c, statusFor(kind), kind, err.Error())
	}
	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("unhandled error")
	return fail(c, http.StatusInternalServerError, "internal", "internal error")
}
