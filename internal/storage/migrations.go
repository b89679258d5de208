package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sqlx.Tx, dialect) error
	Description string
	Version     int
}

// dialect carries the few DDL fragments that differ between drivers.
type dialect string

func (d dialect) serialKey() string {
	if d == DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

func (d dialect) timestamp() string {
	if d == DriverPostgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Keyword rules",
		Up: func(tx *sqlx.Tx, d dialect) error {
			queries := []string{
				fmt.Sprintf(`CREATE TABLE IF NOT EXISTS keyword_rules (
					id %s,
					keyword TEXT NOT NULL,
					transaction_type TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					usage_count INTEGER NOT NULL DEFAULT 1,
					source TEXT NOT NULL DEFAULT 'LEARNED',
					created_at %s NOT NULL,
					last_used_at %s NOT NULL,
					UNIQUE (keyword, transaction_type)
				)`, d.serialKey(), d.timestamp(), d.timestamp()),
				`CREATE INDEX IF NOT EXISTS idx_keyword_rules_keyword ON keyword_rules(keyword)`,
			}
			return execAll(tx, queries)
		},
	},
	{
		Version:     2,
		Description: "Index rules by type for keyword scans",
		Up: func(tx *sqlx.Tx, _ dialect) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_keyword_rules_type_usage ON keyword_rules(transaction_type, usage_count DESC)`,
			})
		},
	},
}

func execAll(tx *sqlx.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *RuleStore) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	d := dialect(s.driver)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at %s NOT NULL
	)`, d.timestamp())); err != nil {
		return unavailable(fmt.Errorf("failed to create schema_migrations: %w", err))
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTxx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx, d); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.ExecContext(ctx, s.q(`
			INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)
		`), migration.Version, migration.Description, s.now()); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("%w: expected %d, got %d", ErrSchemaVersionMismatch, ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *RuleStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return 0, unavailable(fmt.Errorf("failed to get schema version: %w", err))
	}
	return version, nil
}
