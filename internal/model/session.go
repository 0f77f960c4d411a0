package model

import "time"

// Session status values.  Transitions are monotonic except for the
// open/full pair, which follows occupancy.
const (
	StatusUpcoming = "upcoming"
	StatusOpen     = "open"
	StatusFull     = "full"
	StatusClosed   = "closed"
)

// Booking window kinds.
const (
	WindowNone       = "none"        // bookable as soon as the session is open
	WindowDaysBefore = "days_before" // bookable from start minus WindowDays days
	WindowSameDay    = "same_day"    // bookable on the start day from WindowHour:WindowMinute
)

// Session represents a fixed-capacity time slot that participants book.
// It corresponds to a row in the `sessions` table.
//
// Fields:
//  ID                 – primary key identifier.
//  TenantID           – owning organization.
//  Capacity           – number of seats; positive and immutable once published.
//  StartsAt / EndsAt  – time window of the session (UTC).
//  Status             – upcoming, open, full or closed.
//  Window*            – booking-window policy.
//  WaitlistEnabled    – whether full sessions accept waitlist joins.
//  WaitlistMax        – optional cap on active waitlist entries.
//  AutoPromote        – whether freed seats are offered automatically.
//  OfferWindowSeconds – how long an offer stays open; 0 uses the tenant default.
type Session struct {
	ID                 uint64    `json:"id"`
	TenantID           uint64    `json:"tenant_id"`
	Title              string    `json:"title"`
	Capacity           int       `json:"capacity"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	Status             string    `json:"status"`
	WindowKind         string    `json:"window_kind"`
	WindowDays         *int      `json:"window_days,omitempty"`
	WindowHour         int       `json:"window_hour"`
	WindowMinute       int       `json:"window_minute"`
	WaitlistEnabled    bool      `json:"waitlist_enabled"`
	WaitlistMax        *int      `json:"waitlist_max,omitempty"`
	AutoPromote        bool      `json:"auto_promote"`
	OfferWindowSeconds int       `json:"offer_window_seconds"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// OpensAt returns the instant at which the booking window opens.  A
// days_before window without WindowDays falls back to the same-day rule.
func (s Session) OpensAt() time.Time {
	start := s.StartsAt.UTC()
	switch s.WindowKind {
	case WindowNone:
		return time.Time{}
	case WindowDaysBefore:
		if s.WindowDays != nil {
			return start.AddDate(0, 0, -*s.WindowDays)
		}
	}
	y, m, d := start.Date()
	return time.Date(y, m, d, s.WindowHour, s.WindowMinute, 0, 0, time.UTC)
}

// WindowPermits reports whether the booking-window policy allows booking at
// now.  It does not look at Status.
func (s Session) WindowPermits(now time.Time) bool {
	now = now.UTC()
	if s.WindowKind == WindowNone {
		return true
	}
	if s.WindowKind == WindowDaysBefore && s.WindowDays != nil {
		return !now.Before(s.OpensAt())
	}
	// same-day: only on the start's calendar day, from the configured time
	sy, sm, sd := s.StartsAt.UTC().Date()
	ny, nm, nd := now.Date()
	if sy != ny || sm != nm || sd != nd {
		return false
	}
	return !now.Before(s.OpensAt())
}

// Started reports whether the session has begun at now.
func (s Session) Started(now time.Time) bool { return !now.Before(s.StartsAt) }
