package model

import "time"

// Tenant is the organization that owns sessions.  The seconds fields are
// per-tenant defaults; zero means "use the service default".
type Tenant struct {
	ID                 uint64    `json:"id"`
	Name               string    `json:"name"`
	DefaultCapacity    int       `json:"default_capacity"`
	HoldTTLSeconds     int       `json:"hold_ttl_seconds"`
	OfferWindowSeconds int       `json:"offer_window_seconds"`
	CreatedAt          time.Time `json:"created_at"`
}

// Participant is a player booked by a guardian account.
type Participant struct {
	ID         uint64    `json:"id"`
	TenantID   uint64    `json:"tenant_id"`
	GuardianID uint64    `json:"guardian_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// SeatFreedEvent is a pending unit of promotion work: Seats seats became
// free in SessionID for Reason.
type SeatFreedEvent struct {
	ID        uint64
	SessionID uint64
	Seats     int
	Reason    string
	CreatedAt time.Time
}

// Seat-freed reasons.
const (
	ReasonHoldExpired     = "hold.expired"
	ReasonSignupCancelled = "signup.cancelled"
	ReasonOfferExpired    = "offer.expired"
	ReasonOfferCancelled  = "offer.cancelled"
	ReasonWaitlistLeft    = "waitlist.left"
)
