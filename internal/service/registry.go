package service

import (
	"time"

	"github.com/iliyamo/session-booking/internal/model"
)

// Reasons reported by IsBookable.
const (
	ReasonBookable    = ""
	ReasonNotOpen     = "session is not open"
	ReasonFull        = "session is full"
	ReasonClosed      = "session is closed"
	ReasonWindowShut  = "booking window is not open"
	ReasonStarted     = "session has started"
	ReasonUnknownKind = "unknown booking window"
)

// IsBookable reports whether a session accepts direct bookings at now.
// Only an open session whose window policy permits now is bookable.
func IsBookable(s model.Session, now time.Time) (bool, string) {
	switch s.Status {
	case model.StatusOpen:
	case model.StatusFull:
		return false, ReasonFull
	case model.StatusClosed:
		return false, ReasonClosed
	default:
		return false, ReasonNotOpen
	}
	if s.Started(now) {
		return false, ReasonStarted
	}
	switch s.WindowKind {
	case model.WindowNone, model.WindowDaysBefore, model.WindowSameDay:
	default:
		return false, ReasonUnknownKind
	}
	if !s.WindowPermits(now) {
		return false, ReasonWindowShut
	}
	return true, ReasonBookable
}

// NextStatus computes the status a session should hold at now given the
// number of committed seats (occupancy plus outstanding offers).  Closed is
// terminal; upcoming only moves forward; open and full follow committed.
func NextStatus(s model.Session, now time.Time, committed int) string {
	if s.Status == model.StatusClosed || s.Started(now) {
		return model.StatusClosed
	}
	if s.Status == model.StatusUpcoming && now.Before(s.OpensAt()) {
		return model.StatusUpcoming
	}
	if committed >= s.Capacity {
		return model.StatusFull
	}
	return model.StatusOpen
}
