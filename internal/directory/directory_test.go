package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/repository"
)

type stubStore struct {
	tenants      map[uint64]model.Tenant
	participants map[uint64]model.Participant
	calls        int
}

func (s *stubStore) GetTenant(_ context.Context, id uint64) (*model.Tenant, error) {
	s.calls++
	t, ok := s.tenants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *stubStore) GetParticipant(_ context.Context, id uint64) (*model.Participant, error) {
	s.calls++
	p, ok := s.participants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func TestDirectoryCachesLookups(t *testing.T) {
	store := &stubStore{
		tenants:      map[uint64]model.Tenant{1: {ID: 1, Name: "club"}},
		participants: map[uint64]model.Participant{7: {ID: 7, TenantID: 1, GuardianID: 3}},
	}
	d := New(store, 16, time.Minute)

	for i := 0; i < 3; i++ {
		p, err := d.Participant(context.Background(), 7)
		if err != nil {
			t.Fatalf("Participant: %v", err)
		}
		if p.GuardianID != 3 {
			t.Fatalf("unexpected participant %+v", p)
		}
		if _, err := d.Tenant(context.Background(), 1); err != nil {
			t.Fatalf("Tenant: %v", err)
		}
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 store calls, got %d", store.calls)
	}

	d.Forget(1, 7)
	if _, err := d.Participant(context.Background(), 7); err != nil {
		t.Fatalf("Participant after Forget: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected a reload after Forget, calls = %d", store.calls)
	}
}

func TestDirectoryNotFound(t *testing.T) {
	d := New(&stubStore{}, 0, 0)
	if _, err := d.Participant(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := d.Tenant(context.Background(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
