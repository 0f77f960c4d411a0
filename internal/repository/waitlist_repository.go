package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
)

// WaitlistRepo provides data access to the waitlist_entries table.  Rows
// are never renumbered; terminal rows (accepted, expired, cancelled) stay
// for audit and are filtered out of every active query.
type WaitlistRepo struct{}

// NewWaitlistRepo returns a new WaitlistRepo.
func NewWaitlistRepo() *WaitlistRepo { return &WaitlistRepo{} }

const waitlistColumns = `id, tenant_id, session_id, participant_id, position, joined_at, offer_status, offer_expires_at, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (*model.WaitlistEntry, error) {
	var (
		e                   model.WaitlistEntry
		joinedAt, updatedAt int64
		offerExpiresAt      sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.TenantID, &e.SessionID, &e.ParticipantID, &e.Position,
		&joinedAt, &e.OfferStatus, &offerExpiresAt, &updatedAt); err != nil {
		return nil, err
	}
	e.JoinedAt = database.FromMillis(joinedAt)
	e.UpdatedAt = database.FromMillis(updatedAt)
	e.OfferExpiresAt = database.TimePtr(offerExpiresAt)
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]model.WaitlistEntry, error) {
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Create inserts an entry and populates its ID.
func (r *WaitlistRepo) Create(ctx context.Context, q database.Querier, e *model.WaitlistEntry) error {
	const ins = `INSERT INTO waitlist_entries (tenant_id, session_id, participant_id, position, joined_at, offer_status, offer_expires_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	id, err := database.InsertID(ctx, q, ins,
		e.TenantID, e.SessionID, e.ParticipantID, e.Position, database.Millis(e.JoinedAt),
		e.OfferStatus, database.NullMillis(e.OfferExpiresAt), database.Millis(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	e.ID = id
	return nil
}

// GetByID returns an entry or ErrNotFound.
func (r *WaitlistRepo) GetByID(ctx context.Context, q database.Querier, id uint64) (*model.WaitlistEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx, `SELECT `+waitlistColumns+` FROM waitlist_entries WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// ActiveByPair returns the non-terminal entry of a participant in a
// session or ErrNotFound.
func (r *WaitlistRepo) ActiveByPair(ctx context.Context, q database.Querier, sessionID, participantID uint64) (*model.WaitlistEntry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
          WHERE session_id = ? AND participant_id = ? AND offer_status IN (?, ?)
          ORDER BY position ASC LIMIT 1`,
		sessionID, participantID, model.OfferNone, model.OfferOffered))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// ListActive returns the non-terminal entries of a session ordered by
// position ascending.
func (r *WaitlistRepo) ListActive(ctx context.Context, q database.Querier, sessionID uint64) ([]model.WaitlistEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
          WHERE session_id = ? AND offer_status IN (?, ?)
          ORDER BY position ASC`,
		sessionID, model.OfferNone, model.OfferOffered)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// MaxPosition returns the highest position ever assigned in a session, or
// zero when nobody has joined.
func (r *WaitlistRepo) MaxPosition(ctx context.Context, q database.Querier, sessionID uint64) (int, error) {
	var last sql.NullInt64
	if err := q.QueryRowContext(ctx,
		`SELECT MAX(position) FROM waitlist_entries WHERE session_id = ?`, sessionID).Scan(&last); err != nil {
		return 0, err
	}
	return int(last.Int64), nil
}

// WaitlistCounts summarises the active part of a session's queue.
type WaitlistCounts struct {
	Waiting    int // offer_status = none
	LiveOffers int // offered and not yet expired at now
	Active     int // none or offered, expired-but-unswept offers included
}

// Counts returns the waitlist counters of a session at now.
func (r *WaitlistRepo) Counts(ctx context.Context, q database.Querier, sessionID uint64, now time.Time) (WaitlistCounts, error) {
	var c WaitlistCounts
	err := q.QueryRowContext(ctx,
		`SELECT
            COUNT(CASE WHEN offer_status = ? THEN 1 END),
            COUNT(CASE WHEN offer_status = ? AND offer_expires_at > ? THEN 1 END),
            COUNT(CASE WHEN offer_status IN (?, ?) THEN 1 END)
           FROM waitlist_entries WHERE session_id = ?`,
		model.OfferNone,
		model.OfferOffered, database.Millis(now),
		model.OfferNone, model.OfferOffered,
		sessionID).Scan(&c.Waiting, &c.LiveOffers, &c.Active)
	return c, err
}

// NextWaiting returns up to limit waiting entries with the lowest
// positions.
func (r *WaitlistRepo) NextWaiting(ctx context.Context, q database.Querier, sessionID uint64, limit int) ([]model.WaitlistEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := q.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
          WHERE session_id = ? AND offer_status = ?
          ORDER BY position ASC LIMIT ?`,
		sessionID, model.OfferNone, limit)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Offer moves a waiting entry to offered.  It returns ErrNotFound when the
// entry is no longer waiting.
func (r *WaitlistRepo) Offer(ctx context.Context, q database.Querier, id uint64, expiresAt, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE waitlist_entries SET offer_status = ?, offer_expires_at = ?, updated_at = ?
          WHERE id = ? AND offer_status = ?`,
		model.OfferOffered, database.Millis(expiresAt), database.Millis(now), id, model.OfferNone)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Finish moves an active entry to a terminal status and clears its offer
// deadline.
func (r *WaitlistRepo) Finish(ctx context.Context, q database.Querier, id uint64, status string, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE waitlist_entries SET offer_status = ?, offer_expires_at = NULL, updated_at = ?
          WHERE id = ? AND offer_status IN (?, ?)`,
		status, database.Millis(now), id, model.OfferNone, model.OfferOffered)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpiredOffers returns offered entries of a session whose deadline passed
// at now.
func (r *WaitlistRepo) ExpiredOffers(ctx context.Context, q database.Querier, sessionID uint64, now time.Time) ([]model.WaitlistEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+waitlistColumns+` FROM waitlist_entries
          WHERE session_id = ? AND offer_status = ? AND offer_expires_at <= ?
          ORDER BY position ASC`,
		sessionID, model.OfferOffered, database.Millis(now))
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// SessionsWithExpiredOffers lists sessions holding at least one offer
// whose deadline passed at now.
func (r *WaitlistRepo) SessionsWithExpiredOffers(ctx context.Context, q database.Querier, now time.Time) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM waitlist_entries
          WHERE offer_status = ? AND offer_expires_at <= ?
          ORDER BY session_id`,
		model.OfferOffered, database.Millis(now))
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// ExpireActive moves every remaining active entry of a session to expired.
// It runs when the session closes.
func (r *WaitlistRepo) ExpireActive(ctx context.Context, q database.Querier, sessionID uint64, now time.Time) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE waitlist_entries SET offer_status = ?, offer_expires_at = NULL, updated_at = ?
          WHERE session_id = ? AND offer_status IN (?, ?)`,
		model.OfferExpired, database.Millis(now), sessionID, model.OfferNone, model.OfferOffered)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
