package service

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/queue"
)

// CancelSignup deletes a paid or held signup and frees its seat.  The
// seat-freed event is drained right after commit; if that fails the
// scheduler picks it up on the next tick.
func (s *Service) CancelSignup(ctx context.Context, actor Actor, signupID uint64) (err error) {
	ctx, span := startSpan(ctx, "service.CancelSignup", attribute.Int64("signup.id", int64(signupID)))
	defer func() { endSpan(span, err) }()

	hint, err := s.signups.GetByID(ctx, s.db, signupID)
	if err != nil {
		return mapStoreErr(err)
	}
	if hint.TenantID != actor.TenantID {
		return ErrNotFound
	}
	if _, err := s.authorizeParticipant(ctx, actor, hint.ParticipantID); err != nil {
		return err
	}

	err = s.withSession(ctx, hint.SessionID, func(tx *database.Tx, sess *model.Session) error {
		now := s.clock()
		su, err := s.signups.GetByID(ctx, tx, signupID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := s.signups.Delete(ctx, tx, su.ID); err != nil {
			return mapStoreErr(err)
		}
		if err := s.events.Record(ctx, tx, sess.ID, 1, model.ReasonSignupCancelled, now); err != nil {
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

// MarkPaid converts a hold into a paid signup once the external payment
// layer has settled.  Marking an already-paid signup is a no-op.
func (s *Service) MarkPaid(ctx context.Context, actor Actor, signupID uint64) (signup *model.Signup, err error) {
	ctx, span := startSpan(ctx, "service.MarkPaid", attribute.Int64("signup.id", int64(signupID)))
	defer func() { endSpan(span, err) }()

	hint, err := s.signups.GetByID(ctx, s.db, signupID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if hint.TenantID != actor.TenantID {
		return nil, ErrNotFound
	}
	if !actor.Admin {
		return nil, ErrForbidden
	}

	err = s.withSession(ctx, hint.SessionID, func(tx *database.Tx, sess *model.Session) error {
		now := s.clock()
		su, err := s.signups.GetByID(ctx, tx, signupID)
		if err != nil {
			return mapStoreErr(err)
		}
		if su.Paid {
			signup = su
			return nil
		}
		if su.HoldExpired(now) {
			return ErrHoldExpired
		}
		if err := s.signups.MarkPaid(ctx, tx, su.ID); err != nil {
			return err
		}
		su.Paid = true
		su.ReservationExpiresAt = nil
		signup = su
		return nil
	})
	if err != nil {
		return nil, err
	}
	return signup, nil
}

// ExpireHolds is the hold-manager sweep.  For every session with void
// holds it deletes them under the session boundary and records one
// seat-freed event per hold.  It returns the number of holds removed.
func (s *Service) ExpireHolds(ctx context.Context) (n int, err error) {
	ctx, span := startSpan(ctx, "service.ExpireHolds")
	defer func() {
		span.SetAttributes(attribute.Int("holds.expired", n))
		endSpan(span, err)
	}()

	ids, err := s.signups.SessionsWithExpiredHolds(ctx, s.db, s.clock())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		var notes []queue.Notification
		err := s.withSession(ctx, id, func(tx *database.Tx, sess *model.Session) error {
			now := s.clock()
			var err error
			notes, err = s.purgeExpiredHolds(ctx, tx, sess, now)
			if err != nil {
				return err
			}
			return s.syncStatus(ctx, tx, sess, now)
		})
		if err != nil {
			// one bad session must not stall the rest of the sweep
			log.Printf("service: expire holds for session %d: %v", id, err)
			continue
		}
		n += len(notes)
		s.emit(notes)
	}
	return n, nil
}

// drainAfterCommit runs the promotion drain for one session and only logs
// failures; the pending event stays queued for the scheduler.
func (s *Service) drainAfterCommit(ctx context.Context, sessionID uint64) {
	if _, err := s.DrainSession(ctx, sessionID); err != nil {
		log.Printf("service: drain session %d: %v", sessionID, err)
	}
}
