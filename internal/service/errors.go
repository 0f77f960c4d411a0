package service

import (
	"errors"
	"sort"
	"strings"

	"github.com/iliyamo/session-booking/internal/directory"
	"github.com/iliyamo/session-booking/internal/repository"
)

// Conflict errors.  They are surfaced to callers unchanged and never
// retried by the engine itself.
var (
	ErrNotBookable      = errors.New("session is not bookable")
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	ErrDuplicate        = errors.New("participant already booked or waitlisted")
	ErrNotFull          = errors.New("session has free seats; book directly")
	ErrWaitlistDisabled = errors.New("waitlist is disabled for this session")
	ErrWaitlistFull     = errors.New("waitlist is full")
	ErrOfferNotFound    = errors.New("offer not found")
	ErrOfferExpired     = errors.New("offer expired")
	ErrHoldExpired      = errors.New("hold expired")
)

// ErrNotFound is returned for unknown sessions, signups, entries and
// participants, and for records that belong to another tenant.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller may not act for a participant.
var ErrForbidden = errors.New("forbidden")

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// mapStoreErr translates lower-layer not-found errors.
func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, directory.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return ErrDuplicate
	}
	return err
}
