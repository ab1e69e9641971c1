package storage

import (
	"path/filepath"
	"strings"
	"testing"

	"audiofeedback/internal/config"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db, "sqlite"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// idempotent
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var name string
	if err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'analyses'`).Scan(&name); err != nil {
		t.Fatalf("analyses table missing: %v", err)
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(config.DatabaseConfig{Driver: "sqlite3"}); err == nil {
		t.Fatalf("expected missing dsn error")
	}
}

func TestNormalizeDriver(t *testing.T) {
	cases := map[string]string{
		"sqlite":     DriverSQLite,
		"SQLite3":    DriverSQLite,
		"mysql":      DriverMySQL,
		"postgresql": DriverPostgres,
		"pg":         DriverPostgres,
	}
	for in, want := range cases {
		got, err := NormalizeDriver(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeDriver(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT id FROM analyses WHERE id = ? AND status = ?`
	if got := Rebind(DriverSQLite, q); got != q {
		t.Fatalf("sqlite query changed: %s", got)
	}
	if got := Rebind(DriverPostgres, q); got != `SELECT id FROM analyses WHERE id = $1 AND status = $2` {
		t.Fatalf("unexpected postgres query: %s", got)
	}
}

func TestDSNBuilders(t *testing.T) {
	my := mysqlDSN(config.DatabaseConfig{Username: "u", Password: "p", Host: "db", Port: 3306, DBName: "audio"})
	if my != "u:p@tcp(db:3306)/audio?parseTime=true" {
		t.Fatalf("unexpected mysql dsn %s", my)
	}
	my = mysqlDSN(config.DatabaseConfig{Username: "u", Host: "db", Port: 3306, DBName: "audio", Params: "charset=utf8mb4"})
	if !strings.HasSuffix(my, "?charset=utf8mb4&parseTime=true") {
		t.Fatalf("parseTime not appended: %s", my)
	}
	pg := postgresDSN(config.DatabaseConfig{Username: "u", Password: "p", Host: "db", DBName: "audio"})
	if pg != "host=db port=5432 user=u password=p dbname=audio sslmode=disable" {
		t.Fatalf("unexpected postgres dsn %s", pg)
	}
	if got := postgresDSN(config.DatabaseConfig{DSN: "postgres://x"}); got != "postgres://x" {
		t.Fatalf("explicit dsn ignored: %s", got)
	}
}
