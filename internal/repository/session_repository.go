package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
)

// SessionRepo provides data access to the sessions table.  Methods take a
// database.Querier so callers decide whether they run inside a transaction.
type SessionRepo struct{}

// NewSessionRepo returns a new SessionRepo.
func NewSessionRepo() *SessionRepo { return &SessionRepo{} }

const sessionColumns = `id, tenant_id, title, capacity, starts_at, ends_at, status,
       window_kind, window_days, window_hour, window_minute,
       waitlist_enabled, waitlist_max, auto_promote, offer_window_seconds,
       created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var (
		s                       model.Session
		startsAt, endsAt        int64
		createdAt, updatedAt    int64
		windowDays, waitlistMax sql.NullInt64
	)
	if err := row.Scan(
		&s.ID, &s.TenantID, &s.Title, &s.Capacity, &startsAt, &endsAt, &s.Status,
		&s.WindowKind, &windowDays, &s.WindowHour, &s.WindowMinute,
		&s.WaitlistEnabled, &waitlistMax, &s.AutoPromote, &s.OfferWindowSeconds,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	s.StartsAt = database.FromMillis(startsAt)
	s.EndsAt = database.FromMillis(endsAt)
	s.CreatedAt = database.FromMillis(createdAt)
	s.UpdatedAt = database.FromMillis(updatedAt)
	if windowDays.Valid {
		d := int(windowDays.Int64)
		s.WindowDays = &d
	}
	if waitlistMax.Valid {
		m := int(waitlistMax.Int64)
		s.WaitlistMax = &m
	}
	return &s, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// Create inserts a session and populates its generated ID.
func (r *SessionRepo) Create(ctx context.Context, q database.Querier, s *model.Session) error {
	const ins = `INSERT INTO sessions (tenant_id, title, capacity, starts_at, ends_at, status,
        window_kind, window_days, window_hour, window_minute,
        waitlist_enabled, waitlist_max, auto_promote, offer_window_seconds, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := database.InsertID(ctx, q, ins,
		s.TenantID, s.Title, s.Capacity, database.Millis(s.StartsAt), database.Millis(s.EndsAt), s.Status,
		s.WindowKind, nullInt(s.WindowDays), s.WindowHour, s.WindowMinute,
		s.WaitlistEnabled, nullInt(s.WaitlistMax), s.AutoPromote, s.OfferWindowSeconds,
		database.Millis(s.CreatedAt), database.Millis(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	s.ID = id
	return nil
}

// GetByID returns a session or ErrNotFound.
func (r *SessionRepo) GetByID(ctx context.Context, q database.Querier, id uint64) (*model.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetForUpdate loads a session and takes a row lock on it for the rest of
// the transaction.  This is the database half of the per-session
// serialisation boundary.
func (r *SessionRepo) GetForUpdate(ctx context.Context, tx *database.Tx, id uint64) (*model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?` + database.ForUpdate(tx.Dialect())
	s, err := scanSession(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// UpdateStatus sets the status of a session.
func (r *SessionRepo) UpdateStatus(ctx context.Context, q database.Querier, id uint64, status string, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		status, database.Millis(now), id)
	return err
}

// ListNotClosed returns every session whose status can still change.
func (r *SessionRepo) ListNotClosed(ctx context.Context, q database.Querier) ([]model.Session, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status <> ? ORDER BY starts_at ASC`, model.StatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ListPromotable returns IDs of open or full auto-promote sessions that
// still have waiting entries.  The scheduler uses it as the reconciliation
// backstop for lost seat-freed events.
func (r *SessionRepo) ListPromotable(ctx context.Context, q database.Querier) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT s.id FROM sessions s
           JOIN waitlist_entries w ON w.session_id = s.id
          WHERE s.status IN (?, ?) AND s.auto_promote = ? AND w.offer_status = ?
          ORDER BY s.id`,
		model.StatusOpen, model.StatusFull, true, model.OfferNone)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]uint64, error) {
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
