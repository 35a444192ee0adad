package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// ResidentID returns the authenticated resident id stored by JWTAuth.  The
// second result is false on routes that are not behind JWTAuth.
func ResidentID(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxResidentID).(int64)
	return id, ok && id > 0
}

// Role returns the role claim stored by JWTAuth, or "" when absent.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// parseSubject accepts the shapes a "sub" claim arrives in after JSON
// decoding: a number (float64), a numeric string, or json.Number.
func parseSubject(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil && n > 0 {
			return n, true
		}
	case interface{ Int64() (int64, error) }:
		if n, err := t.Int64(); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// rateSubject is the identity used in rate limit keys: the resident id when
// authenticated, "anon" otherwise.
func rateSubject(c echo.Context) string {
	if id, ok := ResidentID(c); ok {
		return strconv.FormatInt(id, 10)
	}
	return "anon"
}
