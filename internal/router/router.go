// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-booking/internal/handler"
	"github.com/iliyamo/session-booking/internal/middleware"
)

// Options carries everything RegisterRoutes needs.  RateLimit and Cache
// may be pass-through middleware when Redis is not configured.
type Options struct {
	JWTSecret string
	Health    echo.HandlerFunc
	Booking   *handler.BookingHandler
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// RegisterRoutes registers /healthz and the authenticated /v1 API.
// Parents and admins share /v1; /v1/admin additionally requires ADMIN.
func RegisterRoutes(e *echo.Echo, o Options) {
	e.GET("/healthz", o.Health)

	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(o.JWTSecret))
	v1.Use(middleware.RequireRole(middleware.RoleParent, middleware.RoleAdmin))
	if o.RateLimit != nil {
		// after JWTAuth so the bucket can be keyed by user
		v1.Use(o.RateLimit)
	}

	b := o.Booking
	if o.Cache != nil {
		v1.GET("/sessions/:id", b.GetSession, o.Cache)
	} else {
		v1.GET("/sessions/:id", b.GetSession)
	}
	v1.POST("/sessions/:id/signups", b.Book)
	v1.DELETE("/signups/:id", b.CancelSignup)
	v1.POST("/sessions/:id/waitlist", b.JoinWaitlist)
	v1.GET("/sessions/:id/waitlist", b.Waitlist)
	v1.DELETE("/sessions/:id/waitlist/:participant_id", b.LeaveWaitlist)
	v1.POST("/offers/:id/accept", b.AcceptOffer)
	v1.POST("/offers/:id/cancel", b.CancelOffer)

	admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	admin.POST("/sessions", b.CreateSession)
	admin.POST("/sessions/:id/promote", b.Promote)
	admin.POST("/signups/:id/paid", b.MarkPaid)
}
