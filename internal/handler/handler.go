// Package handler adapts the booking engine to HTTP.  Every handler
// assumes JWTAuth has run; admin-only routes are additionally guarded by
// RequireRole in the router.
package handler

import (
	"context"
	"fmt"

	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/service"
)

// Engine is the subset of *service.Service the HTTP layer drives.
type Engine interface {
	CreateSession(ctx context.Context, actor service.Actor, in service.SessionInput) (*model.Session, error)
	GetSession(ctx context.Context, actor service.Actor, sessionID uint64) (*service.Availability, error)
	Book(ctx context.Context, actor service.Actor, in service.BookInput) (*model.Signup, error)
	CancelSignup(ctx context.Context, actor service.Actor, signupID uint64) error
	MarkPaid(ctx context.Context, actor service.Actor, signupID uint64) (*model.Signup, error)
	JoinWaitlist(ctx context.Context, actor service.Actor, sessionID, participantID uint64) (*service.WaitlistPosition, error)
	LeaveWaitlist(ctx context.Context, actor service.Actor, sessionID, participantID uint64) error
	Waitlist(ctx context.Context, actor service.Actor, sessionID uint64) ([]service.WaitlistPosition, error)
	AcceptOffer(ctx context.Context, actor service.Actor, entryID uint64) (*model.Signup, error)
	CancelOffer(ctx context.Context, actor service.Actor, entryID uint64) error
	Promote(ctx context.Context, actor service.Actor, sessionID uint64, count int) ([]model.WaitlistEntry, error)
}

// Invalidator drops cached responses for a path.  *middleware.ResponseCache
// satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, tenantID uint64, path string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, uint64, string) {}

// BookingHandler serves the session, signup, waitlist and offer routes.
type BookingHandler struct {
	Engine Engine
	Cache  Invalidator
}

// NewBookingHandler panics on a nil engine; a nil cache disables
// invalidation.
func NewBookingHandler(engine Engine, cache Invalidator) *BookingHandler {
	if engine == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &BookingHandler{Engine: engine, Cache: cache}
}

// SessionPath is the cached availability route for a session.
func SessionPath(sessionID uint64) string {
	return fmt.Sprintf("/v1/sessions/%d", sessionID)
}

// touched invalidates the cached availability of a session after a write.
func (h *BookingHandler) touched(ctx context.Context, actor service.Actor, sessionID uint64) {
	h.Cache.Invalidate(ctx, actor.TenantID, SessionPath(sessionID))
}
