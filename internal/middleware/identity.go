package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userKey identifies the caller for rate limiting: the user id stored by
// JWTAuth, or "anon" on public routes.
func userKey(c echo.Context) string {
	if id, ok := c.Get(CtxUserID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}

// tenantKey scopes cached responses to the caller's tenant.
func tenantKey(c echo.Context) string {
	if id, ok := c.Get(CtxTenantID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "none"
}
