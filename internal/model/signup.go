package model

import "time"

// Signup records a participant's seat in a session.  A signup with Paid
// false is a soft hold that stops counting once ReservationExpiresAt has
// passed.
type Signup struct {
	ID                   uint64     `json:"id"`
	TenantID             uint64     `json:"tenant_id"`
	SessionID            uint64     `json:"session_id"`
	ParticipantID        uint64     `json:"participant_id"`
	Paid                 bool       `json:"paid"`
	ReservationExpiresAt *time.Time `json:"reservation_expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsHold reports whether the signup is an unpaid reservation.
func (s Signup) IsHold() bool { return !s.Paid && s.ReservationExpiresAt != nil }

// HoldExpired reports whether an unpaid hold is void at now.
func (s Signup) HoldExpired(now time.Time) bool {
	return s.IsHold() && !s.ReservationExpiresAt.After(now)
}
