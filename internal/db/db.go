package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlask/sqlask/internal/config"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func FromConfig(cfg config.DatabaseConfig) Config {
	return Config{
		Driver:          cfg.Driver,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}
}

// Opener opens a database handle. Callers own the handle and close it.
type Opener interface {
	Open(ctx context.Context) (*sql.DB, error)
}

// OpenFunc adapts a function to Opener.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

func (f OpenFunc) Open(ctx context.Context) (*sql.DB, error) {
	return f(ctx)
}

func (c Config) Open(ctx context.Context) (*sql.DB, error) {
	return Open(ctx, c)
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	driverName, err := DriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == config.DriverSQLite || cfg.Driver == "" {
		if err := checkSQLiteFile(cfg.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Driver, err)
	}

	return db, nil
}

// DriverName maps a configured dialect to its database/sql driver name.
func DriverName(driver string) (string, error) {
	switch driver {
	case config.DriverSQLite, "":
		return "sqlite3", nil
	case config.DriverPostgres:
		return "pgx", nil
	case config.DriverDuckDB:
		return "duckdb", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// checkSQLiteFile rejects a plain file DSN that does not exist, since the
// sqlite3 driver would otherwise create an empty database in its place.
func checkSQLiteFile(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path := dsn
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("sqlite database %q does not exist", path)
		}
		return fmt.Errorf("stat sqlite database %q: %w", path, err)
	}
	return nil
}
