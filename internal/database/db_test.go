package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	q := `SELECT * FROM signups WHERE session_id = ? AND participant_id = ?`
	if got := Rebind(Postgres, q); got != `SELECT * FROM signups WHERE session_id = $1 AND participant_id = $2` {
		t.Fatalf("postgres: %q", got)
	}
	for _, d := range []Dialect{MySQL, SQLite} {
		if got := Rebind(d, q); got != q {
			t.Fatalf("%s: %q", d, got)
		}
	}
}

func TestForUpdate(t *testing.T) {
	if ForUpdate(SQLite) != "" || ForUpdate(MySQL) != " FOR UPDATE" || ForUpdate(Postgres) != " FOR UPDATE" {
		t.Fatal("unexpected row lock suffix")
	}
}

func TestMillisRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 123e6, time.FixedZone("CET", 3600))
	if got := FromMillis(Millis(at)); !got.Equal(at) || got.Location() != time.UTC {
		t.Fatalf("round trip = %v", got)
	}
}

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "db.sqlite")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	if _, err := db.ExecContext(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY AUTOINCREMENT, body TEXT)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	var first uint64
	err := db.WithTx(ctx, func(tx *Tx) error {
		id, err := InsertID(ctx, tx, `INSERT INTO notes (body) VALUES (?)`, "kept")
		first = id
		return err
	})
	if err != nil || first == 0 {
		t.Fatalf("commit: id=%d err=%v", first, err)
	}

	boom := errors.New("boom")
	err = db.WithTx(ctx, func(tx *Tx) error {
		if _, err := InsertID(ctx, tx, `INSERT INTO notes (body) VALUES (?)`, "dropped"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("rollback err = %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&n); err != nil || n != 1 {
		t.Fatalf("rows = %d err = %v", n, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, db); err != nil {
			t.Fatalf("Migrate run %d: %v", i+1, err)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Options{Driver: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}
