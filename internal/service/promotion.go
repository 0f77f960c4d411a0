package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/queue"
	"github.com/iliyamo/session-booking/internal/repository"
)

// promote offers free seats to the lowest-position waiting entries.  At
// most limit offers are made and never more than the session has free
// seats once live offers are subtracted.  Must run under withSession.
func (s *Service) promote(ctx context.Context, tx *database.Tx, sess *model.Session, limit int, window time.Duration, now time.Time) ([]model.WaitlistEntry, error) {
	st, err := s.seatState(ctx, tx, sess, now)
	if err != nil {
		return nil, err
	}
	k := min(limit, st.Free, st.Waitlist.Waiting)
	if k <= 0 {
		return nil, nil
	}
	next, err := s.waitlist.NextWaiting(ctx, tx, sess.ID, k)
	if err != nil {
		return nil, err
	}
	exp := now.Add(window)
	offered := make([]model.WaitlistEntry, 0, len(next))
	for _, e := range next {
		if err := s.waitlist.Offer(ctx, tx, e.ID, exp, now); err != nil {
			return nil, err
		}
		e.OfferStatus = model.OfferOffered
		e.OfferExpiresAt = &exp
		e.UpdatedAt = now
		offered = append(offered, e)
	}
	return offered, nil
}

func offeredNotes(entries []model.WaitlistEntry, now time.Time) []queue.Notification {
	out := make([]queue.Notification, 0, len(entries))
	for _, e := range entries {
		out = append(out, queue.Notification{
			Event:          queue.EventWaitlistOffered,
			TenantID:       e.TenantID,
			SessionID:      e.SessionID,
			ParticipantID:  e.ParticipantID,
			EntryID:        e.ID,
			Position:       e.Position,
			OfferExpiresAt: e.OfferExpiresAt,
			OccurredAt:     now,
		})
	}
	return out
}

// DrainSession consumes the pending seat-freed events of one session and,
// when the session auto-promotes, offers every free seat to the queue.
// Events of closed or manually promoted sessions are discarded.  The
// free-seat count, not the event total, bounds the offers, so a drain
// also repairs seats whose events were lost.
func (s *Service) DrainSession(ctx context.Context, sessionID uint64) (offered []model.WaitlistEntry, err error) {
	ctx, span := startSpan(ctx, "service.DrainSession", attribute.Int64("session.id", int64(sessionID)))
	defer func() {
		span.SetAttributes(attribute.Int("offers", len(offered)))
		endSpan(span, err)
	}()

	hint, err := s.sessions.GetByID(ctx, s.db, sessionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	tenant := s.tenantOf(ctx, hint.TenantID)

	var now time.Time
	err = s.withSession(ctx, sessionID, func(tx *database.Tx, sess *model.Session) error {
		now = s.clock()
		if _, err := s.events.Take(ctx, tx, sess.ID); err != nil {
			return err
		}
		if !sess.AutoPromote || (sess.Status != model.StatusOpen && sess.Status != model.StatusFull) {
			return nil
		}
		var err error
		offered, err = s.promote(ctx, tx, sess, sess.Capacity, s.offerWindow(*sess, tenant), now)
		if err != nil {
			return err
		}
		return s.syncStatus(ctx, tx, sess, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit(offeredNotes(offered, now))
	return offered, nil
}

// DrainSeatEvents drains the seat-freed work queue until it is empty or
// the pass budget runs out.  It returns the number of offers made.
func (s *Service) DrainSeatEvents(ctx context.Context) (n int, err error) {
	ctx, span := startSpan(ctx, "service.DrainSeatEvents")
	defer func() {
		span.SetAttributes(attribute.Int("offers", n))
		endSpan(span, err)
	}()

	failed := map[uint64]bool{}
	for pass := 0; pass < s.cfg.DrainPasses; pass++ {
		ids, err := s.events.PendingSessions(ctx, s.db, drainBatch)
		if err != nil {
			return n, err
		}
		progressed := false
		for _, id := range ids {
			if failed[id] {
				continue
			}
			offered, err := s.DrainSession(ctx, id)
			if err != nil {
				log.Printf("service: drain session %d: %v", id, err)
				failed[id] = true
				continue
			}
			progressed = true
			n += len(offered)
		}
		if !progressed {
			break
		}
	}
	return n, nil
}

// Reconcile is the self-healing backstop: every auto-promote session with
// waiting entries is drained as if a seat had just been freed.
func (s *Service) Reconcile(ctx context.Context) (n int, err error) {
	ctx, span := startSpan(ctx, "service.Reconcile")
	defer func() { endSpan(span, err) }()

	ids, err := s.sessions.ListPromotable(ctx, s.db)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		offered, err := s.DrainSession(ctx, id)
		if err != nil {
			log.Printf("service: reconcile session %d: %v", id, err)
			continue
		}
		n += len(offered)
	}
	return n, nil
}

// Promote is the administrative cascade trigger.  It offers up to count
// seats regardless of the session's auto-promote flag; running under the
// same session boundary as the automatic drain, it can never promise a
// seat twice.
func (s *Service) Promote(ctx context.Context, actor Actor, sessionID uint64, count int) (offered []model.WaitlistEntry, err error) {
	ctx, span := startSpan(ctx, "service.Promote",
		attribute.Int64("session.id", int64(sessionID)), attribute.Int("count", count))
	defer func() { endSpan(span, err) }()

	if !actor.Admin {
		return nil, ErrForbidden
	}
	if count < 1 {
		return nil, &ValidationError{FieldErrors: map[string]string{"count": "must be at least 1"}}
	}
	hint, err := s.loadSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	tenant := s.tenantOf(ctx, hint.TenantID)

	var now time.Time
	err = s.withSession(ctx, sessionID, func(tx *database.Tx, sess *model.Session) error {
		now = s.clock()
		if sess.Status != model.StatusOpen && sess.Status != model.StatusFull {
			return ErrNotBookable
		}
		var err error
		offered, err = s.promote(ctx, tx, sess, count, s.offerWindow(*sess, tenant), now)
		if err != nil {
			return err
		}
		return s.syncStatus(ctx, tx, sess, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit(offeredNotes(offered, now))
	return offered, nil
}

// AcceptOffer converts a live offer into a paid signup and closes the
// entry, all in one transaction.
func (s *Service) AcceptOffer(ctx context.Context, actor Actor, entryID uint64) (signup *model.Signup, err error) {
	ctx, span := startSpan(ctx, "service.AcceptOffer", attribute.Int64("entry.id", int64(entryID)))
	defer func() { endSpan(span, err) }()

	hint, err := s.offerHint(ctx, actor, entryID)
	if err != nil {
		return nil, err
	}

	var now time.Time
	err = s.withSession(ctx, hint.SessionID, func(tx *database.Tx, sess *model.Session) error {
		now = s.clock()
		e, err := s.loadOffer(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e.OfferStatus != model.OfferOffered {
			return ErrOfferNotFound
		}
		if !e.OfferLive(now) || sess.Status == model.StatusClosed || sess.Started(now) {
			return ErrOfferExpired
		}
		su := &model.Signup{
			TenantID:      e.TenantID,
			SessionID:     e.SessionID,
			ParticipantID: e.ParticipantID,
			Paid:          true,
			CreatedAt:     now,
		}
		if err := s.signups.Create(ctx, tx, su); err != nil {
			return mapStoreErr(err)
		}
		if err := s.waitlist.Finish(ctx, tx, e.ID, model.OfferAccepted, now); err != nil {
			return err
		}
		signup = su
		return s.syncStatus(ctx, tx, sess, now)
	})
	if err != nil {
		return nil, err
	}
	s.emit([]queue.Notification{{
		Event:         queue.EventOfferAccepted,
		TenantID:      signup.TenantID,
		SessionID:     signup.SessionID,
		ParticipantID: signup.ParticipantID,
		SignupID:      signup.ID,
		EntryID:       entryID,
		OccurredAt:    now,
	}})
	return signup, nil
}

// CancelOffer lets the holder decline an offer.  The seat is freed and
// offered to the next entry straight away.
func (s *Service) CancelOffer(ctx context.Context, actor Actor, entryID uint64) (err error) {
	ctx, span := startSpan(ctx, "service.CancelOffer", attribute.Int64("entry.id", int64(entryID)))
	defer func() { endSpan(span, err) }()

	hint, err := s.offerHint(ctx, actor, entryID)
	if err != nil {
		return err
	}
	err = s.withSession(ctx, hint.SessionID, func(tx *database.Tx, sess *model.Session) error {
		now := s.clock()
		e, err := s.loadOffer(ctx, tx, entryID)
		if err != nil {
			return err
		}
		if e.OfferStatus != model.OfferOffered {
			return ErrOfferNotFound
		}
		if err := s.waitlist.Finish(ctx, tx, e.ID, model.OfferCancelled, now); err != nil {
			return err
		}
		if err := s.events.Record(ctx, tx, sess.ID, 1, model.ReasonOfferCancelled, now); err != nil {
			return err
		}
		return s.syncStatus(ctx, tx, sess, now)
	})
	if err != nil {
		return err
	}
	s.drainAfterCommit(ctx, hint.SessionID)
	return nil
}

// offerHint loads an entry outside the lock to find its session and
// checks that actor may act for its participant.
func (s *Service) offerHint(ctx context.Context, actor Actor, entryID uint64) (*model.WaitlistEntry, error) {
	e, err := s.loadOffer(ctx, s.db, entryID)
	if err != nil {
		return nil, err
	}
	if e.TenantID != actor.TenantID {
		return nil, ErrOfferNotFound
	}
	if _, err := s.authorizeParticipant(ctx, actor, e.ParticipantID); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) loadOffer(ctx context.Context, q database.Querier, entryID uint64) (*model.WaitlistEntry, error) {
	e, err := s.waitlist.GetByID(ctx, q, entryID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load offer %d: %w", entryID, err)
	}
	return e, nil
}

// ExpireOffers is the offer-expiry sweep.  Lapsed offers become terminal
// and each records a seat-freed event so the drain offers the seat to the
// next entry.  It returns the number of offers expired.
func (s *Service) ExpireOffers(ctx context.Context) (n int, err error) {
	ctx, span := startSpan(ctx, "service.ExpireOffers")
	defer func() {
		span.SetAttributes(attribute.Int("offers.expired", n))
		endSpan(span, err)
	}()

	ids, err := s.waitlist.SessionsWithExpiredOffers(ctx, s.db, s.clock())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		var notes []queue.Notification
		err := s.withSession(ctx, id, func(tx *database.Tx, sess *model.Session) error {
			now := s.clock()
			expired, err := s.waitlist.ExpiredOffers(ctx, tx, sess.ID, now)
			if err != nil {
				return err
			}
			notes = notes[:0]
			for _, e := range expired {
				if err := s.waitlist.Finish(ctx, tx, e.ID, model.OfferExpired, now); err != nil {
					return err
				}
				notes = append(notes, queue.Notification{
					Event:         queue.EventWaitlistExpired,
					TenantID:      e.TenantID,
					SessionID:     e.SessionID,
					ParticipantID: e.ParticipantID,
					EntryID:       e.ID,
					Position:      e.Position,
					OccurredAt:    now,
				})
			}
			if err := s.events.Record(ctx, tx, sess.ID, len(expired), model.ReasonOfferExpired, now); err != nil {
				return err
			}
			return s.syncStatus(ctx, tx, sess, now)
		})
		if err != nil {
			log.Printf("service: expire offers for session %d: %v", id, err)
			continue
		}
		n += len(notes)
		s.emit(notes)
	}
	return n, nil
}
