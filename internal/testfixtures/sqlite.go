package testfixtures

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iliyamo/session-booking/internal/database"
	"github.com/iliyamo/session-booking/internal/model"
	"github.com/iliyamo/session-booking/internal/repository"
)

// SQLiteHarness is a migrated temporary SQLite database with the directory
// repository attached for seeding.
type SQLiteHarness struct {
	DB        *database.DB
	Directory *repository.DirectoryRepo
}

// NewSQLiteHarness opens and migrates a database in a temp dir.  The
// database is closed through tb.Cleanup.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	db, err := database.Open(database.Options{Driver: "sqlite", Path: path})
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	if err := database.Migrate(context.Background(), db); err != nil {
		_ = db.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return &SQLiteHarness{DB: db, Directory: repository.NewDirectoryRepo(db)}
}

// SeedTenant inserts a tenant with the given defaults.
func (h *SQLiteHarness) SeedTenant(tb testing.TB, name string, holdTTL, offerWindow time.Duration) model.Tenant {
	tb.Helper()
	t := model.Tenant{
		Name:               name,
		DefaultCapacity:    10,
		HoldTTLSeconds:     int(holdTTL / time.Second),
		OfferWindowSeconds: int(offerWindow / time.Second),
		CreatedAt:          ReferenceTime(),
	}
	if err := h.Directory.CreateTenant(context.Background(), &t); err != nil {
		tb.Fatalf("seed tenant: %v", err)
	}
	return t
}

// SeedParticipants inserts n participants owned by guardianID.
func (h *SQLiteHarness) SeedParticipants(tb testing.TB, tenantID, guardianID uint64, n int) []model.Participant {
	tb.Helper()
	out := make([]model.Participant, 0, n)
	for i := 0; i < n; i++ {
		p := model.Participant{
			TenantID:   tenantID,
			GuardianID: guardianID,
			Name:       "player",
			CreatedAt:  ReferenceTime(),
		}
		if err := h.Directory.CreateParticipant(context.Background(), &p); err != nil {
			tb.Fatalf("seed participant: %v", err)
		}
		out = append(out, p)
	}
	return out
}
