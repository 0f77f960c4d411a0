package model

import "time"

// Offer status values for waitlist entries.  Accepted, expired and
// cancelled are terminal.
const (
	OfferNone      = "none"
	OfferOffered   = "offered"
	OfferAccepted  = "accepted"
	OfferExpired   = "expired"
	OfferCancelled = "cancelled"
)

// WaitlistEntry is a participant queued for a seat in a full session.
// Position is assigned at join time and never renumbered.
type WaitlistEntry struct {
	ID             uint64     `json:"id"`
	TenantID       uint64     `json:"tenant_id"`
	SessionID      uint64     `json:"session_id"`
	ParticipantID  uint64     `json:"participant_id"`
	Position       int        `json:"position"`
	JoinedAt       time.Time  `json:"joined_at"`
	OfferStatus    string     `json:"offer_status"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Active reports whether the entry still holds a place in the queue.
func (e WaitlistEntry) Active() bool {
	return e.OfferStatus == OfferNone || e.OfferStatus == OfferOffered
}

// OfferLive reports whether the entry holds an unexpired offer at now.
func (e WaitlistEntry) OfferLive(now time.Time) bool {
	return e.OfferStatus == OfferOffered && e.OfferExpiresAt != nil && e.OfferExpiresAt.After(now)
}
