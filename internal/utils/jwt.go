// Package utils provides helpers for minting access tokens.  Production
// tokens come from the external identity service; these helpers issue the
// same claim set for local development and tests.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT along with its expiry.
type AccessToken struct {
	Token string    // serialized JWT
	Exp   time.Time // UTC expiration time
}

// Claims identifies the caller: the user id (sub), the tenant the user
// belongs to and the role (PARENT or ADMIN).
type Claims struct {
	UserID   uint64
	TenantID uint64
	Role     string
}

// NewAccessToken builds and signs an HS256 JWT carrying sub, tenant, role,
// exp and iat.
func NewAccessToken(secret string, c Claims, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("jwt secret is empty")
	}
	if c.UserID == 0 || c.TenantID == 0 {
		return AccessToken{}, errors.New("user and tenant are required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":    c.UserID,
		"tenant": c.TenantID,
		"role":   c.Role,
		"exp":    exp.Unix(),
		"iat":    now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
