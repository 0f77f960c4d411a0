// Package queue defines the notification payloads the booking engine emits
// and the RabbitMQ plumbing that carries them to delivery services.
package queue

import "time"

// NotificationsQueue is the durable queue every notification is routed to.
const NotificationsQueue = "session.notifications"

// Event names.  Delivery (email, push, SMS) is handled downstream; the
// engine only states what happened.
const (
	EventWaitlistOffered = "waitlist.offered"
	EventWaitlistExpired = "waitlist.expired"
	EventHoldExpired     = "hold.expired"
	EventSignupCreated   = "signup.created"
	EventOfferAccepted   = "offer.accepted"
)

// Notification is the JSON body of every message.  Fields that do not
// apply to an event are omitted.
type Notification struct {
	Event          string     `json:"event"`
	TenantID       uint64     `json:"tenant_id"`
	SessionID      uint64     `json:"session_id"`
	ParticipantID  uint64     `json:"participant_id"`
	SignupID       uint64     `json:"signup_id,omitempty"`
	EntryID        uint64     `json:"waitlist_entry_id,omitempty"`
	Position       int        `json:"position,omitempty"`
	OfferExpiresAt *time.Time `json:"offer_expires_at,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}
