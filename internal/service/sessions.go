package service

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
)

// SessionInput is the request of CreateSession.  Zero Capacity falls back
// to the tenant default.
type SessionInput struct {
	Title              string    `json:"title"`
	Capacity           int       `json:"capacity"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	WindowKind         string    `json:"window_kind"`
	WindowDays         *int      `json:"window_days"`
	WindowHour         int       `json:"window_hour"`
	WindowMinute       int       `json:"window_minute"`
	WaitlistEnabled    bool      `json:"waitlist_enabled"`
	WaitlistMax        *int      `json:"waitlist_max"`
	AutoPromote        bool      `json:"auto_promote"`
	OfferWindowSeconds int       `json:"offer_window_seconds"`
}

func (in SessionInput) validate(now time.Time) *ValidationError {
	v := &ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		v.add("title", "is required")
	}
	if in.Capacity < 0 {
		v.add("capacity", "must be positive")
	}
	if in.StartsAt.IsZero() {
		v.add("starts_at", "is required")
	} else if !in.StartsAt.After(now) {
		v.add("starts_at", "must be in the future")
	}
	if !in.EndsAt.After(in.StartsAt) {
		v.add("ends_at", "must be after starts_at")
	}
	switch in.WindowKind {
	case "", model.WindowNone, model.WindowSameDay:
	case model.WindowDaysBefore:
		if in.WindowDays != nil && *in.WindowDays < 0 {
			v.add("window_days", "must not be negative")
		}
	default:
		v.add("window_kind", "must be none, days_before or same_day")
	}
	if in.WindowHour < 0 || in.WindowHour > 23 {
		v.add("window_hour", "must be between 0 and 23")
	}
	if in.WindowMinute < 0 || in.WindowMinute > 59 {
		v.add("window_minute", "must be between 0 and 59")
	}
	if in.WaitlistMax != nil && *in.WaitlistMax < 1 {
		v.add("waitlist_max", "must be at least 1")
	}
	if in.OfferWindowSeconds < 0 {
		v.add("offer_window_seconds", "must not be negative")
	}
	return v
}

// CreateSession publishes a session for the actor's tenant.  Its initial
// status is computed from the booking window at creation time.
func (s *Service) CreateSession(ctx context.Context, actor Actor, in SessionInput) (sess *model.Session, err error) {
	ctx, span := startSpan(ctx, "service.CreateSession")
	defer func() { endSpan(span, err) }()

	if !actor.Admin {
		return nil, ErrForbidden
	}
	now := s.clock()
	if v := in.validate(now); v.HasErrors() {
		return nil, v
	}
	tenant, err := s.dir.Tenant(ctx, actor.TenantID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	capacity := in.Capacity
	if capacity == 0 {
		capacity = tenant.DefaultCapacity
	}
	if capacity <= 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{"capacity": "must be positive"}}
	}
	// sessions without an explicit policy open on their start day
	kind := in.WindowKind
	if kind == "" {
		kind = model.WindowSameDay
	}
	sess = &model.Session{
		TenantID:           tenant.ID,
		Title:              strings.TrimSpace(in.Title),
		Capacity:           capacity,
		StartsAt:           in.StartsAt.UTC(),
		EndsAt:             in.EndsAt.UTC(),
		Status:             model.StatusUpcoming,
		WindowKind:         kind,
		WindowDays:         in.WindowDays,
		WindowHour:         in.WindowHour,
		WindowMinute:       in.WindowMinute,
		WaitlistEnabled:    in.WaitlistEnabled,
		WaitlistMax:        in.WaitlistMax,
		AutoPromote:        in.AutoPromote,
		OfferWindowSeconds: in.OfferWindowSeconds,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	sess.Status = NextStatus(*sess, now, 0)
	if err := s.sessions.Create(ctx, s.db, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AdvanceStatuses applies the registry's transition rules to every session
// that is not closed.  A session that closes has its remaining waitlist
// entries expired and its pending seat-freed events discarded.  It returns
// the number of sessions whose status changed.
func (s *Service) AdvanceStatuses(ctx context.Context) (n int, err error) {
	ctx, span := startSpan(ctx, "service.AdvanceStatuses")
	defer func() {
		span.SetAttributes(attribute.Int("sessions.changed", n))
		endSpan(span, err)
	}()

	now := s.clock()
	list, err := s.sessions.ListNotClosed(ctx, s.db)
	if err != nil {
		return 0, err
	}
	for i := range list {
		hint := list[i]
		st, err := s.seatState(ctx, s.db, &hint, now)
		if err != nil {
			log.Printf("service: status of session %d: %v", hint.ID, err)
			continue
		}
		if NextStatus(hint, now, st.Committed()) == hint.Status {
			continue
		}
		changed := false
		err = s.withSession(ctx, hint.ID, func(tx *database.Tx, sess *model.Session) error {
			now := s.clock()
			st, err := s.seatState(ctx, tx, sess, now)
			if err != nil {
				return err
			}
			next := NextStatus(*sess, now, st.Committed())
			if next == sess.Status {
				return nil
			}
			if err := s.sessions.UpdateStatus(ctx, tx, sess.ID, next, now); err != nil {
				return err
			}
			changed = true
			if next != model.StatusClosed {
				return nil
			}
			if _, err := s.waitlist.ExpireActive(ctx, tx, sess.ID, now); err != nil {
				return err
			}
			_, err = s.events.Take(ctx, tx, sess.ID)
			return err
		})
		if err != nil {
			log.Printf("service: advance session %d: %v", hint.ID, err)
			continue
		}
		if changed {
			n++
		}
	}
	return n, nil
}
