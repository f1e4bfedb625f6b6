// Package sqlslot provides a SQLite-backed persistent slot.
//
// A SQLite file survives restarts but has no cross-process change
// notification, so Subscribe always reports slot.ErrBroadcastUnavailable and
// contexts built on it run without cross-context sync.
package sqlslot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dyluth/larder/pkg/slot"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	area       TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      TEXT    NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (area, key)
)`

// Store persists slots in SQLite.
type Store struct {
	sqlDB *sql.DB
	area  string
}

var _ slot.Storage = (*Store)(nil)

// Open opens a SQLite slot store for area and creates its table.
func Open(path, area string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if area == "" {
		return nil, fmt.Errorf("area cannot be empty")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create slots table: %w", err)
	}
	return &Store{sqlDB: sqlDB, area: area}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Area returns the storage area of this store.
func (s *Store) Area() string {
	return s.area
}

// Get reads the slot under key. Returns (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (slot.Value, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM slots WHERE area = ? AND key = ?`, s.area, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slot: %w", err)
	}
	return slot.Value(value), nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value slot.Value) error {
	if value.IsAbsent() {
		return fmt.Errorf("cannot set absent value for key '%s': use Remove", key)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO slots (area, key, value, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(area, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.area, key, string(value), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	return nil
}

// Remove deletes the slot under key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM slots WHERE area = ? AND key = ?`, s.area, key,
	); err != nil {
		return fmt.Errorf("remove slot: %w", err)
	}
	return nil
}

// Subscribe always fails: SQLite has no change broadcast.
func (s *Store) Subscribe(context.Context) (*slot.Subscription, error) {
	return nil, slot.ErrBroadcastUnavailable
}
