package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-booking/internal/middleware"
	"github.com/iliyamo/session-booking/internal/service"
)

func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(httptest.NewRequest(method, path, nil), rec), rec
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&service.ValidationError{FieldErrors: map[string]string{"title": "is required"}}, http.StatusBadRequest, "validation_failed"},
		{service.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("load: %w", service.ErrNotFound), http.StatusNotFound, "not_found"},
		{service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{service.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{service.ErrDuplicate, http.StatusConflict, "duplicate"},
		{service.ErrWaitlistFull, http.StatusConflict, "waitlist_full"},
		{service.ErrOfferExpired, http.StatusConflict, "offer_expired"},
		{service.ErrHoldExpired, http.StatusConflict, "hold_expired"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/")
			if err := writeError(c, tc.err); err != nil {
				t.Fatalf("writeError: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["error"] != tc.code {
				t.Fatalf("error = %v, want %q", body["error"], tc.code)
			}
		})
	}
}

func TestActorFrom(t *testing.T) {
	c, _ := newContext(http.MethodGet, "/")
	if _, ok := actorFrom(c); ok {
		t.Fatal("actor without identity")
	}
	c.Set(middleware.CtxUserID, uint64(5))
	c.Set(middleware.CtxTenantID, uint64(2))
	c.Set(middleware.CtxRole, middleware.RoleAdmin)
	actor, ok := actorFrom(c)
	if !ok || actor != (service.Actor{UserID: 5, TenantID: 2, Admin: true}) {
		t.Fatalf("actor = %+v %v", actor, ok)
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz")
	if err := Health(pinger{})(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("healthy: %v %d", err, rec.Code)
	}
	c, rec = newContext(http.MethodGet, "/healthz")
	if err := Health(pinger{err: errors.New("down")})(c); err != nil || rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: %v %d", err, rec.Code)
	}
}

type invalidations struct{ paths []string }

func (i *invalidations) Invalidate(_ context.Context, tenantID uint64, path string) {
	i.paths = append(i.paths, fmt.Sprintf("%d%s", tenantID, path))
}

func TestNewBookingHandlerDefaultsCache(t *testing.T) {
	h := NewBookingHandler(stubEngine{}, nil)
	h.touched(context.Background(), service.Actor{TenantID: 1}, 3)

	inv := &invalidations{}
	h = NewBookingHandler(stubEngine{}, inv)
	h.touched(context.Background(), service.Actor{TenantID: 1}, 3)
	if len(inv.paths) != 1 || inv.paths[0] != "1/v1/sessions/3" {
		t.Fatalf("paths = %v", inv.paths)
	}
}

// stubEngine embeds the interface; only methods a test calls need bodies.
type stubEngine struct{ Engine }
