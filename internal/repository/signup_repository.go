package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
)

// SignupRepo provides data access to the signups table.  Unpaid signups
// carry reservation_expires_at and act as soft holds; every method
// compares expirations against the caller-supplied now rather than the
// database clock.
type SignupRepo struct{}

// NewSignupRepo returns a new SignupRepo.
func NewSignupRepo() *SignupRepo { return &SignupRepo{} }

const signupColumns = `id, tenant_id, session_id, participant_id, paid, reservation_expires_at, created_at`

func scanSignup(row interface{ Scan(...any) error }) (*model.Signup, error) {
	var (
		s         model.Signup
		expiresAt sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&s.ID, &s.TenantID, &s.SessionID, &s.ParticipantID, &s.Paid, &expiresAt, &createdAt); err != nil {
		return nil, err
	}
	s.ReservationExpiresAt = database.TimePtr(expiresAt)
	s.CreatedAt = database.FromMillis(createdAt)
	return &s, nil
}

// Create inserts a signup and populates its ID.  A second signup for the
// same session and participant fails with ErrDuplicate.
func (r *SignupRepo) Create(ctx context.Context, q database.Querier, s *model.Signup) error {
	const ins = `INSERT INTO signups (tenant_id, session_id, participant_id, paid, reservation_expires_at, created_at)
                 VALUES (?, ?, ?, ?, ?, ?)`
	id, err := database.InsertID(ctx, q, ins,
		s.TenantID, s.SessionID, s.ParticipantID, s.Paid, database.NullMillis(s.ReservationExpiresAt), database.Millis(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert signup: %w", err)
	}
	s.ID = id
	return nil
}

// GetByID returns a signup or ErrNotFound.
func (r *SignupRepo) GetByID(ctx context.Context, q database.Querier, id uint64) (*model.Signup, error) {
	s, err := scanSignup(q.QueryRowContext(ctx, `SELECT `+signupColumns+` FROM signups WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByPair returns the signup for a session and participant or ErrNotFound.
func (r *SignupRepo) GetByPair(ctx context.Context, q database.Querier, sessionID, participantID uint64) (*model.Signup, error) {
	s, err := scanSignup(q.QueryRowContext(ctx,
		`SELECT `+signupColumns+` FROM signups WHERE session_id = ? AND participant_id = ?`, sessionID, participantID))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// ListBySession returns every signup of a session ordered by creation.
func (r *SignupRepo) ListBySession(ctx context.Context, q database.Querier, sessionID uint64) ([]model.Signup, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+signupColumns+` FROM signups WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Signup
	for rows.Next() {
		s, err := scanSignup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Delete removes a signup.  It returns ErrNotFound when no row matched.
func (r *SignupRepo) Delete(ctx context.Context, q database.Querier, id uint64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM signups WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid converts a hold into a paid signup.
func (r *SignupRepo) MarkPaid(ctx context.Context, q database.Querier, id uint64) error {
	_, err := q.ExecContext(ctx, `UPDATE signups SET paid = ?, reservation_expires_at = NULL WHERE id = ?`, true, id)
	return err
}

// Occupancy counts paid signups plus holds still live at now.
func (r *SignupRepo) Occupancy(ctx context.Context, q database.Querier, sessionID uint64, now time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM signups
          WHERE session_id = ? AND (paid = ? OR reservation_expires_at > ?)`,
		sessionID, true, database.Millis(now)).Scan(&n)
	return n, err
}

// ExpireHolds deletes every unpaid hold of a session whose TTL elapsed at
// now and returns the removed rows.  The caller must run it inside a
// transaction and record a seat-freed event for each returned hold.
//
// When there are no expired holds, it returns an empty slice and nil error.
func (r *SignupRepo) ExpireHolds(ctx context.Context, tx *database.Tx, sessionID uint64, now time.Time) ([]model.Signup, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+signupColumns+` FROM signups
          WHERE session_id = ? AND paid = ? AND reservation_expires_at <= ?
          ORDER BY id`,
		sessionID, false, database.Millis(now))
	if err != nil {
		return nil, err
	}
	var expired []model.Signup
	for rows.Next() {
		s, scanErr := scanSignup(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		expired = append(expired, *s)
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return []model.Signup{}, nil
	}
	for _, s := range expired {
		if _, err := tx.ExecContext(ctx, `DELETE FROM signups WHERE id = ?`, s.ID); err != nil {
			return nil, err
		}
	}
	return expired, nil
}

// SessionsWithExpiredHolds lists sessions that have at least one hold
// whose TTL elapsed at now.
func (r *SignupRepo) SessionsWithExpiredHolds(ctx context.Context, q database.Querier, now time.Time) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM signups
          WHERE paid = ? AND reservation_expires_at <= ?
          ORDER BY session_id`,
		false, database.Millis(now))
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// Exists reports whether a session/participant pair already has a signup.
func (r *SignupRepo) Exists(ctx context.Context, q database.Querier, sessionID, participantID uint64) (bool, error) {
	_, err := r.GetByPair(ctx, q, sessionID, participantID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
