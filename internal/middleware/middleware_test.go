package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-booking/internal/config"
	"github.com/iliyamo/session-booking/internal/utils"
)

const testSecret = "test-secret"

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// whoami echoes the identity JWTAuth stored in the context.
func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user":   c.Get(CtxUserID),
		"tenant": c.Get(CtxTenantID),
		"role":   c.Get(CtxRole),
	})
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	issued, err := utils.NewAccessToken(testSecret, utils.Claims{UserID: 9, TenantID: 2, Role: RoleParent}, time.Minute)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	cases := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"issued token", issued.Token, http.StatusOK, `"user":9`},
		{"string ids", signed(t, jwt.MapClaims{"sub": "12", "tenant": "4", "role": RoleAdmin}), http.StatusOK, `"tenant":4`},
		{"missing header", "", http.StatusUnauthorized, "missing bearer token"},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, "invalid token"},
		{"missing tenant", signed(t, jwt.MapClaims{"sub": 1, "role": RoleParent}), http.StatusUnauthorized, "invalid tenant"},
		{"zero subject", signed(t, jwt.MapClaims{"sub": 0, "tenant": 1}), http.StatusUnauthorized, "invalid subject"},
		{"expired", signed(t, jwt.MapClaims{"sub": 1, "tenant": 1, "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized, "invalid token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tc.token)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.body) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestJWTAuthRejectsOtherSigningMethods(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": 1, "tenant": 1})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rec := serve(e, http.MethodGet, "/me", raw); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(testSecret), RequireRole(RoleAdmin))

	admin := signed(t, jwt.MapClaims{"sub": 1, "tenant": 1, "role": RoleAdmin})
	parent := signed(t, jwt.MapClaims{"sub": 2, "tenant": 1, "role": RoleParent})

	if rec := serve(e, http.MethodGet, "/admin", admin); rec.Code != http.StatusOK {
		t.Fatalf("admin status = %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/admin", parent); rec.Code != http.StatusForbidden {
		t.Fatalf("parent status = %d", rec.Code)
	}
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/5/signups", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/sessions/:id/signups")
	c.Set(CtxUserID, uint64(42))

	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.1",
		"user":       "rl:user:42",
		"route":      "rl:route:POST /v1/sessions/:id/signups",
		"user_route": "rl:user:42:route:POST /v1/sessions/:id/signups",
		"":           "rl:ip:10.0.0.1:user:42:route:POST /v1/sessions/:id/signups",
	}
	for strategy, want := range cases {
		t.Run("strategy "+strategy, func(t *testing.T) {
			got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c)
			if got != want {
				t.Fatalf("rateKey = %q, want %q", got, want)
			}
		})
	}
}

func TestRateKeyAnonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), httptest.NewRecorder())
	if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:anon" {
		t.Fatalf("rateKey = %q", got)
	}
}

func TestDecodeBucket(t *testing.T) {
	res, ok := decodeBucket([]interface{}{int64(0), int64(0), int64(1500)})
	if !ok || res.allowed || res.retry != 1500*time.Millisecond {
		t.Fatalf("unexpected result %v %v", res, ok)
	}
	if _, ok := decodeBucket("nope"); ok {
		t.Fatal("expected decode failure")
	}
}

func TestMiddlewaresPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	rc := NewResponseCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil)
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil), rc.Middleware())

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/ok", "")
		if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("request %d: status %d cache %q", i, rec.Code, rec.Header().Get("X-Cache"))
		}
	}
	rc.Invalidate(context.Background(), 1, "/ok")
}

func TestCacheKeyScopesTenantAndPath(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Prefix: "cache"}, nil)
	e := echo.New()
	key := func(path string, tenant uint64) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		c.SetPath("/v1/sessions/:id")
		c.Set(CtxTenantID, tenant)
		return rc.key(c)
	}

	if key("/v1/sessions/1", 1) == key("/v1/sessions/2", 1) {
		t.Fatal("different sessions share a key")
	}
	if key("/v1/sessions/1", 1) == key("/v1/sessions/1", 2) {
		t.Fatal("different tenants share a key")
	}
	if key("/v1/sessions/1?x=1", 1) == key("/v1/sessions/1", 1) {
		t.Fatal("query ignored by default strategy")
	}
	if !strings.HasPrefix(key("/v1/sessions/1", 1), rc.pathKey("1", "/v1/sessions/1")+":") {
		t.Fatal("key does not extend the path prefix used by Invalidate")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || got.Get("Content-Type") != "application/json" || string(body) != `{"a":1}` {
		t.Fatalf("decode mismatch: %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload(bs[:5]); ok {
		t.Fatal("short payload decoded")
	}
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))
	if cw.buf.String() != "abcd" || cw.size != 7 || rec.Body.String() != "abcdefg" {
		t.Fatalf("buf=%q size=%d client=%q", cw.buf.String(), cw.size, rec.Body.String())
	}
}
