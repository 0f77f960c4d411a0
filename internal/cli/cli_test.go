package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func sqliteEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("REDIS_ADDR", "127.0.0.1:1")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || !strings.HasPrefix(out, "bookingd dev") {
		t.Fatalf("version: %q %v", out, err)
	}
}

func TestToken(t *testing.T) {
	sqliteEnv(t)
	out, err := run(t, "token", "--user", "7", "--tenant", "3", "--role", "admin")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	tok, err := jwt.Parse(strings.TrimSpace(out), func(*jwt.Token) (interface{}, error) { return []byte("cli-secret"), nil })
	if err != nil || !tok.Valid {
		t.Fatalf("parse: %v", err)
	}
	if role := tok.Claims.(jwt.MapClaims)["role"]; role != "ADMIN" {
		t.Fatalf("role = %v", role)
	}

	if _, err := run(t, "token", "--user", "7", "--tenant", "3", "--role", "owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestMigrateThenSweep(t *testing.T) {
	sqliteEnv(t)
	out, err := run(t, "migrate")
	if err != nil || !strings.Contains(out, "schema up to date (sqlite)") {
		t.Fatalf("migrate: %q %v", out, err)
	}
	out, err = run(t, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out, "holds expired=0") {
		t.Fatalf("sweep output %q", out)
	}
}

func TestServeRequiresSecret(t *testing.T) {
	sqliteEnv(t)
	t.Setenv("JWT_SECRET", "")
	if _, err := run(t, "serve"); err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("serve without secret: %v", err)
	}
}
