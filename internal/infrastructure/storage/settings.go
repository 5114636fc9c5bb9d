package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"MailTracker/internal/ports"
)

const settingsTable = "settings"

// SettingsStore is a key/value table for credentials, flags and run
// bookkeeping.
type SettingsStore struct {
	db  *DB
	now func() time.Time
}

var _ ports.Settings = (*SettingsStore)(nil)

// NewSettingsStore wires the settings table.
func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db, now: time.Now}
}

// Migrate creates the settings table when it does not exist.
func (s *SettingsStore) Migrate(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at TEXT NOT NULL)",
		quoteIdent(settingsTable),
	)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

// Get returns the value stored under key and whether it exists.
func (s *SettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.db.builder.
		Select("value").
		From(quoteIdent(settingsTable)).
		Where(sq.Eq{"name": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build settings select: %w", err)
	}

	var value string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key.
func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	query, args, err := s.db.builder.
		Insert(quoteIdent(settingsTable)).
		Columns("name", "value", "updated_at").
		Values(key, value, formatTime(s.now())).
		Suffix("ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build settings upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}
