package middleware // reusable HTTP middleware for the rewards API

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.  Handlers read them through ResidentID and
// Role rather than touching the raw claim values.
const (
	ctxResidentID = "resident_id"
	ctxRole       = "role"
)

// Roles carried in the "role" claim.
const (
	RoleResident = "RESIDENT"
	RoleAdmin    = "ADMIN"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the resident id (the "sub" claim) and role into the request
// context.  Tokens are issued by the barangay identity service; this API only
// verifies them with the shared HS256 secret.  A token whose subject is not a
// positive integer is rejected with 401 so handlers never see a malformed
// identity.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized", "message": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized", "message": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized", "message": "invalid claims"})
			}
			id, ok := parseSubject(claims["sub"])
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "error": "unauthorized", "message": "invalid subject"})
			}

			c.Set(ctxResidentID, id)
			c.Set(ctxRole, claims["role"])
			return next(c)
		}
	}
}
