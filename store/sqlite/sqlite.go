// Package sqlite provides a single-file SQLite implementation of the
// chatgate.Store interface, suitable for single-instance bot deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/botfold/chatgate/pkg/chatgate"
)

const schema = `
CREATE TABLE IF NOT EXISTS chatgate_users (
	user_id    TEXT PRIMARY KEY,
	selection  TEXT NOT NULL DEFAULT '',
	usage      TEXT NOT NULL DEFAULT '{}',
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chatgate_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Store implements chatgate.Store using a SQLite database file.
type Store struct {
	db *sql.DB
}

// Open creates a SQLite store at path, creating the schema if needed.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// busy_timeout waits out short lock contention; WAL keeps reads cheap
	// while the snapshot loop writes.
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite does not benefit from multiple write connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load implements chatgate.Store.
func (s *Store) Load(ctx context.Context) (*chatgate.Snapshot, error) {
	var savedAtRaw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM chatgate_meta WHERE key = 'saved_at'`).Scan(&savedAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Never saved is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta: %w", err)
	}

	snap := &chatgate.Snapshot{Users: make(map[chatgate.UserID]chatgate.UserRecord)}
	if t, err := time.Parse(time.RFC3339Nano, savedAtRaw); err == nil {
		snap.SavedAt = t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT user_id, selection, usage FROM chatgate_users`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, selection, usageRaw string
		if err := rows.Scan(&userID, &selection, &usageRaw); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}

		rec := chatgate.UserRecord{Selection: chatgate.ProviderID(selection)}
		if usageRaw != "" && usageRaw != "{}" {
			if err := json.Unmarshal([]byte(usageRaw), &rec.Usage); err != nil {
				return nil, fmt.Errorf("decode usage for %s: %w", userID, err)
			}
		}
		snap.Users[chatgate.UserID(userID)] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return snap, nil
}

// Save implements chatgate.Store. The previous snapshot is replaced in a
// single transaction so a crash mid-write never leaves a mixed state.
func (s *Store) Save(ctx context.Context, snap *chatgate.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chatgate_users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chatgate_users (user_id, selection, usage, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for userID, rec := range snap.Users {
		usageRaw := []byte("{}")
		if len(rec.Usage) > 0 {
			usageRaw, err = json.Marshal(rec.Usage)
			if err != nil {
				return fmt.Errorf("encode usage for %s: %w", userID, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, string(userID), string(rec.Selection), string(usageRaw), now); err != nil {
			return fmt.Errorf("insert user %s: %w", userID, err)
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = now
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chatgate_meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		savedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	return tx.Commit()
}
