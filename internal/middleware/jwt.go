package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxTenantID = "tenant_id"
)

// Roles carried in the "role" claim.
const (
	RoleParent = "PARENT"
	RoleAdmin  = "ADMIN"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the caller's user id, role and tenant id into the request
// context.  Tokens are issued by the external identity service with the
// claims sub, role and tenant; the secret must match the one it signs
// with.  Handlers read the values via c.Get(CtxUserID) and friends.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// only HMAC tokens are accepted; anything else is rejected before
			// the key is handed out
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid claims"})
			}

			uid, err := claimID(claims["sub"])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid subject"})
			}
			tenant, err := claimID(claims["tenant"])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid tenant"})
			}
			role, _ := claims["role"].(string)

			c.Set(CtxUserID, uid)
			c.Set(CtxRole, role)
			c.Set(CtxTenantID, tenant)
			return next(c)
		}
	}
}

// claimID converts a numeric claim.  JSON numbers decode as float64 but
// some issuers send ids as strings.
func claimID(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, fmt.Errorf("bad id %v", t)
		}
		return uint64(t), nil
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("bad id %q", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("missing id")
	}
}
