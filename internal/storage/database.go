package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"audiofeedback/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// NormalizeDriver maps accepted aliases to the database/sql driver name.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "mysql":
		return DriverMySQL, nil
	case "postgres", "postgresql", "pg":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Open connects to the configured history database.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	driver, err := NormalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch driver {
	case DriverSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open(DriverSQLite, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// each :memory: connection is its own database
		db.SetMaxOpenConns(1)
	case DriverMySQL:
		db, err = sql.Open(DriverMySQL, mysqlDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case DriverPostgres:
		db, err = sql.Open(DriverPostgres, postgresDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func mysqlDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	params := cfg.Params
	if !strings.Contains(params, "parseTime") {
		if params != "" {
			params += "&"
		}
		params += "parseTime=true"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		params,
	)
}

func postgresDSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	parts := []string{
		"host=" + cfg.Host,
		"port=" + strconv.Itoa(port),
		"user=" + cfg.Username,
		"password=" + cfg.Password,
		"dbname=" + cfg.DBName,
	}
	if cfg.Params != "" {
		parts = append(parts, cfg.Params)
	} else {
		parts = append(parts, "sslmode=disable")
	}
	return strings.Join(parts, " ")
}

// Rebind rewrites ? placeholders into $n for postgres.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return fmt.Errorf("unsupported driver for migration: %w", err)
	}
	var stmts []string
	switch driver {
	case DriverSQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS analyses (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				file_name TEXT NOT NULL,
				size INTEGER NOT NULL,
				digest TEXT NOT NULL,
				status TEXT NOT NULL,
				tempo REAL NOT NULL DEFAULT 0,
				spectral_centroid REAL NOT NULL DEFAULT 0,
				spectral_bandwidth REAL NOT NULL DEFAULT 0,
				rms REAL NOT NULL DEFAULT 0,
				sample_rate INTEGER NOT NULL DEFAULT 0,
				channels INTEGER NOT NULL DEFAULT 0,
				duration REAL NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				elapsed_ms INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_digest ON analyses(digest)`,
		}
	case DriverMySQL:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS analyses (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				file_name VARCHAR(255) NOT NULL,
				size BIGINT NOT NULL,
				digest CHAR(64) NOT NULL,
				status VARCHAR(16) NOT NULL,
				tempo DOUBLE NOT NULL DEFAULT 0,
				spectral_centroid DOUBLE NOT NULL DEFAULT 0,
				spectral_bandwidth DOUBLE NOT NULL DEFAULT 0,
				rms DOUBLE NOT NULL DEFAULT 0,
				sample_rate INT NOT NULL DEFAULT 0,
				channels INT NOT NULL DEFAULT 0,
				duration DOUBLE NOT NULL DEFAULT 0,
				error TEXT NOT NULL,
				elapsed_ms BIGINT NOT NULL DEFAULT 0,
				created_at DATETIME(3) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_analyses_created_at (created_at),
				INDEX idx_analyses_digest (digest)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case DriverPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS analyses (
				id BIGSERIAL PRIMARY KEY,
				file_name TEXT NOT NULL,
				size BIGINT NOT NULL,
				digest TEXT NOT NULL,
				status TEXT NOT NULL,
				tempo DOUBLE PRECISION NOT NULL DEFAULT 0,
				spectral_centroid DOUBLE PRECISION NOT NULL DEFAULT 0,
				spectral_bandwidth DOUBLE PRECISION NOT NULL DEFAULT 0,
				rms DOUBLE PRECISION NOT NULL DEFAULT 0,
				sample_rate INTEGER NOT NULL DEFAULT 0,
				channels INTEGER NOT NULL DEFAULT 0,
				duration DOUBLE PRECISION NOT NULL DEFAULT 0,
				error TEXT NOT NULL DEFAULT '',
				elapsed_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_analyses_digest ON analyses(digest)`,
		}
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
