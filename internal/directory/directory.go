// Package directory resolves participants and tenants for the booking
// engine.  Lookups go through a small expiring LRU in front of the
// database because every booking and waitlist call resolves both.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/repository"
)

// ErrNotFound is returned when a participant or tenant is unknown.
var ErrNotFound = errors.New("directory: not found")

// Store is the persistent backing of the directory.
type Store interface {
	GetTenant(ctx context.Context, id uint64) (*model.Tenant, error)
	GetParticipant(ctx context.Context, id uint64) (*model.Participant, error)
}

// Directory caches tenants and participants read from a Store.
type Directory struct {
	store        Store
	tenants      *expirable.LRU[uint64, model.Tenant]
	participants *expirable.LRU[uint64, model.Participant]
}

// New returns a Directory.  size and ttl bound each cache; a non-positive
// size disables caching.
func New(store Store, size int, ttl time.Duration) *Directory {
	d := &Directory{store: store}
	if size > 0 {
		d.tenants = expirable.NewLRU[uint64, model.Tenant](size, nil, ttl)
		d.participants = expirable.NewLRU[uint64, model.Participant](size, nil, ttl)
	}
	return d
}

// Participant resolves a participant id.
func (d *Directory) Participant(ctx context.Context, id uint64) (model.Participant, error) {
	if d.participants != nil {
		if p, ok := d.participants.Get(id); ok {
			return p, nil
		}
	}
	p, err := d.store.GetParticipant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Participant{}, ErrNotFound
		}
		return model.Participant{}, err
	}
	if d.participants != nil {
		d.participants.Add(id, *p)
	}
	return *p, nil
}

// Tenant resolves a tenant id.
func (d *Directory) Tenant(ctx context.Context, id uint64) (model.Tenant, error) {
	if d.tenants != nil {
		if t, ok := d.tenants.Get(id); ok {
			return t, nil
		}
	}
	t, err := d.store.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Tenant{}, ErrNotFound
		}
		return model.Tenant{}, err
	}
	if d.tenants != nil {
		d.tenants.Add(id, *t)
	}
	return *t, nil
}

// Forget drops cached entries, e.g. after an administrative change.
func (d *Directory) Forget(tenantID, participantID uint64) {
	if d.tenants != nil && tenantID != 0 {
		d.tenants.Remove(tenantID)
	}
	if d.participants != nil && participantID != 0 {
		d.participants.Remove(participantID)
	}
}
