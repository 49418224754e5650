package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	amerrors "github.com/gmickel/gno/internal/errors"
)

// migration represents a single schema migration, applied in order
// after the base schema is created.
type migration struct {
	version     int
	description string
	apply       func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations beyond the
// base schema. New migrations are appended at the end; never modify
// existing entries once released.
var migrations = []migration{
	{
		version:     1,
		description: "base schema (applied via schemaSQL)",
		apply:       func(tx *sql.Tx) error { return nil },
	},
}

// migrate runs all pending schema migrations and records the applied
// version in schema_version.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		slog.Info("applying migration", "version", m.version, "description", m.description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if err := m.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, description) VALUES (?, ?)",
			m.version, m.description); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}

	return nil
}

// checkTokenizer enforces tokenizer immutability (spec.md §4.1): once a
// store has been created with a tokenizer, opening it again with a
// different tokenizer is refused unless the caller explicitly rebuilds
// via RebuildFTS. The chosen tokenizer is recorded in kv_state on first
// open.
func (s *SQLiteStore) checkTokenizer(ctx context.Context, tokenizer string) error {
	recorded, err := s.GetState(ctx, StateKeyFTSTokenizer)
	if err != nil {
		return fmt.Errorf("reading tokenizer sentinel: %w", err)
	}

	if recorded == "" {
		return s.SetState(ctx, StateKeyFTSTokenizer, tokenizer)
	}

	if recorded != tokenizer {
		return amerrors.New(amerrors.ErrCodeTokenizerLocked,
			fmt.Sprintf("store was created with tokenizer %q, refusing to open with %q", recorded, tokenizer), nil).
			WithDetail("recorded", recorded).
			WithDetail("requested", tokenizer).
			WithSuggestion(fmt.Sprintf("Set ftsTokenizer in config/index.yml back to %q", recorded))
	}

	return nil
}
