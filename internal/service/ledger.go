package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/queue"
	"github.com/iliyamo/session-booking/internal/repository"
)

// seatState is a snapshot of a session's seats at one instant.
type seatState struct {
	Occupancy int
	Waitlist  repository.WaitlistCounts
	// Free excludes seats promised to live offers.
	Free int
}

// Committed is the number of seats that are taken or promised.
func (st seatState) Committed() int { return st.Occupancy + st.Waitlist.LiveOffers }

func (s *Service) seatState(ctx context.Context, q database.Querier, sess *model.Session, now time.Time) (seatState, error) {
	occ, err := s.signups.Occupancy(ctx, q, sess.ID, now)
	if err != nil {
		return seatState{}, err
	}
	counts, err := s.waitlist.Counts(ctx, q, sess.ID, now)
	if err != nil {
		return seatState{}, err
	}
	st := seatState{Occupancy: occ, Waitlist: counts}
	st.Free = sess.Capacity - st.Committed()
	if st.Free < 0 {
		st.Free = 0
	}
	return st, nil
}

// syncStatus flips an open or full session to match its committed seats.
// Upcoming and closed sessions are left to the scheduler.
func (s *Service) syncStatus(ctx context.Context, tx *database.Tx, sess *model.Session, now time.Time) error {
	if sess.Status != model.StatusOpen && sess.Status != model.StatusFull {
		return nil
	}
	st, err := s.seatState(ctx, tx, sess, now)
	if err != nil {
		return err
	}
	want := model.StatusOpen
	if st.Committed() >= sess.Capacity {
		want = model.StatusFull
	}
	if want == sess.Status {
		return nil
	}
	if err := s.sessions.UpdateStatus(ctx, tx, sess.ID, want, now); err != nil {
		return err
	}
	sess.Status = want
	return nil
}

// purgeExpiredHolds deletes void holds of a session, records one
// seat-freed event per hold and returns the hold.expired notifications.
func (s *Service) purgeExpiredHolds(ctx context.Context, tx *database.Tx, sess *model.Session, now time.Time) ([]queue.Notification, error) {
	expired, err := s.signups.ExpireHolds(ctx, tx, sess.ID, now)
	if err != nil {
		return nil, err
	}
	var out []queue.Notification
	for _, h := range expired {
		if err := s.events.Record(ctx, tx, sess.ID, 1, model.ReasonHoldExpired, now); err != nil {
			return nil, err
		}
		out = append(out, queue.Notification{
			Event:         queue.EventHoldExpired,
			TenantID:      h.TenantID,
			SessionID:     h.SessionID,
			ParticipantID: h.ParticipantID,
			SignupID:      h.ID,
			OccurredAt:    now,
		})
	}
	return out, nil
}

// BookInput is the request of Book.
type BookInput struct {
	SessionID     uint64
	ParticipantID uint64
	HoldOnly      bool
}

// Book reserves a seat for a participant.  A held booking expires after
// the hold TTL unless it is marked paid first.
//
// Seats promised to live offers are not available.  When the session
// auto-promotes and participants are waiting, freed seats belong to the
// queue and direct booking fails with ErrCapacityExceeded.  A participant
// holding a live offer may book directly; the offer is consumed.
func (s *Service) Book(ctx context.Context, actor Actor, in BookInput) (signup *model.Signup, err error) {
	ctx, span := startSpan(ctx, "service.Book",
		attribute.Int64("session.id", int64(in.SessionID)),
		attribute.Int64("participant.id", int64(in.ParticipantID)),
		attribute.Bool("hold_only", in.HoldOnly))
	defer func() { endSpan(span, err) }()

	if in.SessionID == 0 || in.ParticipantID == 0 {
		v := &ValidationError{}
		if in.SessionID == 0 {
			v.add("session_id", "is required")
		}
		if in.ParticipantID == 0 {
			v.add("participant_id", "is required")
		}
		return nil, v
	}
	p, err := s.authorizeParticipant(ctx, actor, in.ParticipantID)
	if err != nil {
		return nil, err
	}
	sessHint, err := s.loadSession(ctx, actor, in.SessionID)
	if err != nil {
		return nil, err
	}
	tenant := s.tenantOf(ctx, sessHint.TenantID)

	var notes []queue.Notification
	err = s.withSession(ctx, in.SessionID, func(tx *database.Tx, sess *model.Session) error {
		now := s.clock()
		if sess.TenantID != actor.TenantID {
			return ErrNotFound
		}
		expired, err := s.purgeExpiredHolds(ctx, tx, sess, now)
		if err != nil {
			return err
		}
		notes = append(notes, expired...)

		if ok, reason := IsBookable(*sess, now); !ok && reason != ReasonFull {
			return ErrNotBookable
		}
		exists, err := s.signups.Exists(ctx, tx, sess.ID, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}

		st, err := s.seatState(ctx, tx, sess, now)
		if err != nil {
			return err
		}
		free, waiting := st.Free, st.Waitlist.Waiting
		ownOffer := false
		entry, err := s.waitlist.ActiveByPair(ctx, tx, sess.ID, p.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			entry = nil
		case err != nil:
			return err
		case entry.OfferLive(now):
			// the offer already holds a seat for this participant
			free++
			ownOffer = true
		case entry.OfferStatus == model.OfferNone:
			waiting--
		}
		if sess.AutoPromote && waiting > 0 && !ownOffer {
			return ErrCapacityExceeded
		}
		if free <= 0 {
			return ErrCapacityExceeded
		}

		su := &model.Signup{
			TenantID:      sess.TenantID,
			SessionID:     sess.ID,
			ParticipantID: p.ID,
			Paid:          !in.HoldOnly,
			CreatedAt:     now,
		}
		if in.HoldOnly {
			exp := now.Add(s.holdTTL(tenant))
			su.ReservationExpiresAt = &exp
		}
		if err := s.signups.Create(ctx, tx, su); err != nil {
			return mapStoreErr(err)
		}
		if entry != nil {
			status := model.OfferCancelled
			if entry.OfferLive(now) {
				status = model.OfferAccepted
			}
			if err := s.waitlist.Finish(ctx, tx, entry.ID, status, now); err != nil {
				return err
			}
		}
		if err := s.syncStatus(ctx, tx, sess, now); err != nil {
			return err
		}
		signup = su
		notes = append(notes, queue.Notification{
			Event:         queue.EventSignupCreated,
			TenantID:      su.TenantID,
			SessionID:     su.SessionID,
			ParticipantID: su.ParticipantID,
			SignupID:      su.ID,
			OccurredAt:    now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(notes)
	return signup, nil
}

// Availability is the public view of a session's seats.
type Availability struct {
	Session    model.Session `json:"session"`
	Occupancy  int           `json:"occupancy"`
	LiveOffers int           `json:"live_offers"`
	Waiting    int           `json:"waiting"`
	Free       int           `json:"free"`
	Bookable   bool          `json:"bookable"`
	Reason     string        `json:"reason,omitempty"`
}

// GetSession returns a session with its current seat counts.
func (s *Service) GetSession(ctx context.Context, actor Actor, sessionID uint64) (*Availability, error) {
	sess, err := s.loadSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	st, err := s.seatState(ctx, s.db, sess, now)
	if err != nil {
		return nil, err
	}
	ok, reason := IsBookable(*sess, now)
	return &Availability{
		Session:    *sess,
		Occupancy:  st.Occupancy,
		LiveOffers: st.Waitlist.LiveOffers,
		Waiting:    st.Waitlist.Waiting,
		Free:       st.Free,
		Bookable:   ok,
		Reason:     reason,
	}, nil
}
