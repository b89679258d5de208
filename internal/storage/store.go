package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// RuleStore persists keyword rules in SQLite or PostgreSQL.
type RuleStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
	driver string
}

// Open connects to the rule database. For SQLite the dsn is a file path
// (or ":memory:"); for PostgreSQL it is a connection URL.
func Open(driver, dsn string) (*RuleStore, error) {
	if err := validateString(dsn, "dsn"); err != nil {
		return nil, err
	}

	switch driver {
	case DriverSQLite:
		return openSQLite(dsn)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func openSQLite(path string) (*RuleStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(DriverSQLite, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewRuleStore(db), nil
}

func openPostgres(dsn string) (*RuleStore, error) {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewRuleStore(db), nil
}

// NewRuleStore wraps an open connection pool.
func NewRuleStore(db *sqlx.DB) *RuleStore {
	return &RuleStore{
		db:     db,
		driver: db.DriverName(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithLogger replaces the store's logger.
func (s *RuleStore) WithLogger(logger *slog.Logger) *RuleStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Driver returns the database driver name.
func (s *RuleStore) Driver() string {
	return s.driver
}

// Ping checks that the database is reachable.
func (s *RuleStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close closes the database connection.
func (s *RuleStore) Close() error {
	return s.db.Close()
}

// q rebinds ? placeholders for the active driver.
func (s *RuleStore) q(query string) string {
	return s.db.Rebind(query)
}
