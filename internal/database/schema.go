package database

import (
	"context"
	"fmt"
	"strings"
)

// tables lists the DDL in creation order.  Column types are written with
// tokens that are substituted per dialect.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS tenants (
    id {{pk}},
    name VARCHAR(191) NOT NULL,
    default_capacity INT NOT NULL DEFAULT 0,
    hold_ttl_seconds INT NOT NULL DEFAULT 0,
    offer_window_seconds INT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS participants (
    id {{pk}},
    tenant_id BIGINT NOT NULL,
    guardian_id BIGINT NOT NULL,
    name VARCHAR(191) NOT NULL,
    created_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS sessions (
    id {{pk}},
    tenant_id BIGINT NOT NULL,
    title VARCHAR(191) NOT NULL,
    capacity INT NOT NULL,
    starts_at BIGINT NOT NULL,
    ends_at BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL,
    window_kind VARCHAR(16) NOT NULL,
    window_days INT NULL,
    window_hour INT NOT NULL DEFAULT 0,
    window_minute INT NOT NULL DEFAULT 0,
    waitlist_enabled {{bool}} NOT NULL,
    waitlist_max INT NULL,
    auto_promote {{bool}} NOT NULL,
    offer_window_seconds INT NOT NULL DEFAULT 0,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS signups (
    id {{pk}},
    tenant_id BIGINT NOT NULL,
    session_id BIGINT NOT NULL,
    participant_id BIGINT NOT NULL,
    paid {{bool}} NOT NULL,
    reservation_expires_at BIGINT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (session_id, participant_id)
)`,
	`CREATE TABLE IF NOT EXISTS waitlist_entries (
    id {{pk}},
    tenant_id BIGINT NOT NULL,
    session_id BIGINT NOT NULL,
    participant_id BIGINT NOT NULL,
    position INT NOT NULL,
    joined_at BIGINT NOT NULL,
    offer_status VARCHAR(16) NOT NULL,
    offer_expires_at BIGINT NULL,
    updated_at BIGINT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS seat_freed_events (
    id {{pk}},
    session_id BIGINT NOT NULL,
    seats INT NOT NULL,
    reason VARCHAR(32) NOT NULL,
    created_at BIGINT NOT NULL
)`,
}

// indexes are created after the tables.  MySQL has no CREATE INDEX IF NOT
// EXISTS so duplicate-key errors are ignored there.
var indexes = []string{
	`CREATE INDEX {{ine}}idx_signups_hold ON signups (paid, reservation_expires_at)`,
	`CREATE INDEX {{ine}}idx_waitlist_session_position ON waitlist_entries (session_id, position)`,
	`CREATE INDEX {{ine}}idx_waitlist_session_participant ON waitlist_entries (session_id, participant_id)`,
	`CREATE INDEX {{ine}}idx_waitlist_offer ON waitlist_entries (offer_status, offer_expires_at)`,
	`CREATE INDEX {{ine}}idx_seat_events_session ON seat_freed_events (session_id)`,
	`CREATE INDEX {{ine}}idx_sessions_status ON sessions (status, starts_at)`,
}

func replacer(d Dialect) *strings.Replacer {
	switch d {
	case Postgres:
		return strings.NewReplacer("{{pk}}", "BIGSERIAL PRIMARY KEY", "{{bool}}", "BOOLEAN", "{{ine}}", "IF NOT EXISTS ")
	case SQLite:
		return strings.NewReplacer("{{pk}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{bool}}", "INTEGER", "{{ine}}", "IF NOT EXISTS ")
	default:
		return strings.NewReplacer("{{pk}}", "BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY", "{{bool}}", "BOOLEAN", "{{ine}}", "")
	}
}

// Migrate creates every table and index the service needs.  It is safe to
// run on every startup.
func Migrate(ctx context.Context, db *DB) error {
	r := replacer(db.Dialect())
	for _, stmt := range tables {
		if _, err := db.DB.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, stmt := range indexes {
		if _, err := db.DB.ExecContext(ctx, r.Replace(stmt)); err != nil {
			if db.Dialect() == MySQL && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("migrate index: %w", err)
		}
	}
	return nil
}
