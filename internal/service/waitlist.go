package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/queue"
	"github.com/iliyamo/session-booking/internal/repository"
)

// WaitlistPosition is a waitlist entry with its query-time rank.  Position
// is the stored join order and never changes; Rank is the 1-based index
// among active entries and only decreases as entries ahead finish.
type WaitlistPosition struct {
	model.WaitlistEntry
	Rank int `json:"rank"`
}

// JoinWaitlist enqueues a participant for a session that has no seat to
// offer.  The new entry's position is one past every position ever
// assigned in the session.
func (s *Service) JoinWaitlist(ctx context.Context, actor Actor, sessionID, participantID uint64) (pos *WaitlistPosition, err error) {
	ctx, span := startSpan(ctx, "service.JoinWaitlist",
		attribute.Int64("session.id", int64(sessionID)),
		attribute.Int64("participant.id", int64(participantID)))
	defer func() { endSpan(span, err) }()

	if participantID == 0 {
		return nil, &ValidationError{FieldErrors: map[string]string{"participant_id": "is required"}}
	}
	p, err := s.authorizeParticipant(ctx, actor, participantID)
	if err != nil {
		return nil, err
	}

	var notes []queue.Notification
	err = s.withSession(ctx, sessionID, func(tx *database.Tx, sess *model.Session) error {
		now := s.clock()
		if sess.TenantID != actor.TenantID {
			return ErrNotFound
		}
		if sess.Status != model.StatusOpen && sess.Status != model.StatusFull {
			return ErrNotBookable
		}
		if !sess.WaitlistEnabled {
			return ErrWaitlistDisabled
		}
		// a lapsed hold of this participant must not count as a signup
		expired, err := s.purgeExpiredHolds(ctx, tx, sess, now)
		if err != nil {
			return err
		}
		notes = expired
		exists, err := s.signups.Exists(ctx, tx, sess.ID, p.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicate
		}
		if _, err := s.waitlist.ActiveByPair(ctx, tx, sess.ID, p.ID); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		st, err := s.seatState(ctx, tx, sess, now)
		if err != nil {
			return err
		}
		if st.Free > 0 && st.Waitlist.Waiting == 0 {
			return ErrNotFull
		}
		// lapsed offers awaiting the sweep do not take a waitlist slot
		if sess.WaitlistMax != nil && st.Waitlist.Waiting+st.Waitlist.LiveOffers >= *sess.WaitlistMax {
			return ErrWaitlistFull
		}

		last, err := s.waitlist.MaxPosition(ctx, tx, sess.ID)
		if err != nil {
			return err
		}
		e := &model.WaitlistEntry{
			TenantID:      sess.TenantID,
			SessionID:     sess.ID,
			ParticipantID: p.ID,
			Position:      last + 1,
			JoinedAt:      now,
			OfferStatus:   model.OfferNone,
			UpdatedAt:     now,
		}
		if err := s.waitlist.Create(ctx, tx, e); err != nil {
			return err
		}
		pos = &WaitlistPosition{WaitlistEntry: *e, Rank: st.Waitlist.Active + 1}
		if len(notes) > 0 {
			return s.syncStatus(ctx, tx, sess, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(notes) > 0 {
		s.emit(notes)
		s.drainAfterCommit(ctx, sessionID)
	}
	return pos, nil
}

// LeaveWaitlist cancels a participant's active entry.  Later entries keep
// their positions.  Leaving with a live offer frees the promised seat.
func (s *Service) LeaveWaitlist(ctx context.Context, actor Actor, sessionID, participantID uint64) (err error) {
	ctx, span := startSpan(ctx, "service.LeaveWaitlist",
		attribute.Int64("session.id", int64(sessionID)),
		attribute.Int64("participant.id", int64(participantID)))
	defer func() { endSpan(span, err) }()

	p, err := s.authorizeParticipant(ctx, actor, participantID)
	if err != nil {
		return err
	}
	freed := false
	err = s.withSession(ctx, sessionID, func(tx *database.Tx, sess *model.Session) error {
		now := s.clock()
		if sess.TenantID != actor.TenantID {
			return ErrNotFound
		}
		e, err := s.waitlist.ActiveByPair(ctx, tx, sess.ID, p.ID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := s.waitlist.Finish(ctx, tx, e.ID, model.OfferCancelled, now); err != nil {
			return mapStoreErr(err)
		}
		if e.OfferLive(now) {
			freed = true
			if err := s.events.Record(ctx, tx, sess.ID, 1, model.ReasonWaitlistLeft, now); err != nil {
				return err
			}
		}
		return s.syncStatus(ctx, tx, sess, now)
	})
	if err != nil {
		return err
	}
	if freed {
		s.drainAfterCommit(ctx, sessionID)
	}
	return nil
}

// Waitlist lists the active entries of a session by position ascending.
func (s *Service) Waitlist(ctx context.Context, actor Actor, sessionID uint64) ([]WaitlistPosition, error) {
	sess, err := s.loadSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	entries, err := s.waitlist.ListActive(ctx, s.db, sess.ID)
	if err != nil {
		return nil, err
	}
	out := make([]WaitlistPosition, 0, len(entries))
	for i, e := range entries {
		out = append(out, WaitlistPosition{WaitlistEntry: e, Rank: i + 1})
	}
	return out, nil
}
