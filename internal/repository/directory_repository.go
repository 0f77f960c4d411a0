package repository

import (
	"context"
	"fmt"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
)

// DirectoryRepo reads and writes tenants and participants.  Identity and
// tenant administration live elsewhere; this table is the local mirror the
// booking engine resolves against.
type DirectoryRepo struct {
	db *database.DB
}

// NewDirectoryRepo returns a DirectoryRepo bound to db.
func NewDirectoryRepo(db *database.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

// GetTenant returns a tenant or ErrNotFound.
func (r *DirectoryRepo) GetTenant(ctx context.Context, id uint64) (*model.Tenant, error) {
	var (
		t         model.Tenant
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, default_capacity, hold_ttl_seconds, offer_window_seconds, created_at
           FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.DefaultCapacity, &t.HoldTTLSeconds, &t.OfferWindowSeconds, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	t.CreatedAt = database.FromMillis(createdAt)
	return &t, nil
}

// CreateTenant inserts a tenant and populates its ID.
func (r *DirectoryRepo) CreateTenant(ctx context.Context, t *model.Tenant) error {
	id, err := database.InsertID(ctx, r.db,
		`INSERT INTO tenants (name, default_capacity, hold_ttl_seconds, offer_window_seconds, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		t.Name, t.DefaultCapacity, t.HoldTTLSeconds, t.OfferWindowSeconds, database.Millis(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	t.ID = id
	return nil
}

// GetParticipant returns a participant or ErrNotFound.
func (r *DirectoryRepo) GetParticipant(ctx context.Context, id uint64) (*model.Participant, error) {
	var (
		p         model.Participant
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, guardian_id, name, created_at FROM participants WHERE id = ?`, id).
		Scan(&p.ID, &p.TenantID, &p.GuardianID, &p.Name, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.CreatedAt = database.FromMillis(createdAt)
	return &p, nil
}

// CreateParticipant inserts a participant and populates its ID.
func (r *DirectoryRepo) CreateParticipant(ctx context.Context, p *model.Participant) error {
	id, err := database.InsertID(ctx, r.db,
		`INSERT INTO participants (tenant_id, guardian_id, name, created_at) VALUES (?, ?, ?, ?)`,
		p.TenantID, p.GuardianID, p.Name, database.Millis(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	p.ID = id
	return nil
}

// ListParticipantsByGuardian returns the participants a guardian manages.
func (r *DirectoryRepo) ListParticipantsByGuardian(ctx context.Context, tenantID, guardianID uint64) ([]model.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, guardian_id, name, created_at FROM participants
          WHERE tenant_id = ? AND guardian_id = ? ORDER BY id`, tenantID, guardianID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Participant
	for rows.Next() {
		var (
			p         model.Participant
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.TenantID, &p.GuardianID, &p.Name, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = database.FromMillis(createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

