package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/session-booking/internal/database"
)

// SeatEventRepo stores pending seat-freed work.  Rows are written in the
// same transaction that frees the seat and removed by the promotion drain.
type SeatEventRepo struct{}

// NewSeatEventRepo returns a new SeatEventRepo.
func NewSeatEventRepo() *SeatEventRepo { return &SeatEventRepo{} }

// Record enqueues seats freed in a session.
func (r *SeatEventRepo) Record(ctx context.Context, q database.Querier, sessionID uint64, seats int, reason string, now time.Time) error {
	if seats <= 0 {
		return nil
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO seat_freed_events (session_id, seats, reason, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, seats, reason, database.Millis(now))
	if err != nil {
		return fmt.Errorf("record seat event: %w", err)
	}
	return nil
}

// PendingSessions returns the sessions with at least one pending event,
// oldest event first.
func (r *SeatEventRepo) PendingSessions(ctx context.Context, q database.Querier, limit int) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT session_id FROM seat_freed_events
          GROUP BY session_id
          ORDER BY MIN(id) ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// Take deletes every pending event of a session and returns the total
// number of seats they announced.
func (r *SeatEventRepo) Take(ctx context.Context, tx *database.Tx, sessionID uint64) (int, error) {
	var seats sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT SUM(seats) FROM seat_freed_events WHERE session_id = ?`, sessionID).Scan(&seats); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seat_freed_events WHERE session_id = ?`, sessionID); err != nil {
		return 0, err
	}
	return int(seats.Int64), nil
}

// Count returns the number of pending events across all sessions.
func (r *SeatEventRepo) Count(ctx context.Context, q database.Querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM seat_freed_events`).Scan(&n)
	return n, err
}
