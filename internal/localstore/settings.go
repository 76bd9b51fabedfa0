package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	keyMigrationComplete  = "migration_complete"
	keyMigrationTimestamp = "migration_timestamp"
)

// MigrationState is the persisted migration record.
type MigrationState struct {
	Complete  bool
	Timestamp *time.Time
}

// MigrationState reads the migration flags.
func (s *Store) MigrationState(ctx context.Context) (MigrationState, error) {
	var st MigrationState

	complete, err := s.setting(ctx, keyMigrationComplete)
	if err != nil {
		return st, err
	}
	st.Complete = complete == "true"

	raw, err := s.setting(ctx, keyMigrationTimestamp)
	if err != nil {
		return st, err
	}
	if raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return st, fmt.Errorf("parse %s: %w", keyMigrationTimestamp, err)
		}
		st.Timestamp = &ts
	}
	return st, nil
}

// MarkMigrationComplete sets the complete flag and, when at is non-nil,
// the migration timestamp, atomically.
func (s *Store) MarkMigrationComplete(ctx context.Context, at *time.Time) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := putSetting(ctx, tx, keyMigrationComplete, "true"); err != nil {
			return err
		}
		if at == nil {
			return nil
		}
		return putSetting(ctx, tx, keyMigrationTimestamp, at.UTC().Format(time.RFC3339Nano))
	})
}

// ClearMigrationTimestamp removes the timestamp so cleanup stops running.
// The complete flag stays set.
func (s *Store) ClearMigrationTimestamp(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, keyMigrationTimestamp); err != nil {
		return fmt.Errorf("clear %s: %w", keyMigrationTimestamp, err)
	}
	return nil
}

func (s *Store) setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return v, nil
}

func putSetting(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}
