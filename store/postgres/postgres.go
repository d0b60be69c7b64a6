// Package postgres provides a PostgreSQL implementation of the
// chatgate.Store interface. The snapshot is replaced inside a single
// transaction, so readers never observe a half-written state.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/botfold/chatgate/pkg/chatgate"
)

const schema = `
CREATE TABLE IF NOT EXISTS chatgate_users (
	user_id    TEXT PRIMARY KEY,
	selection  TEXT NOT NULL DEFAULT '',
	usage      JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS chatgate_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Config holds PostgreSQL store configuration
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Store implements chatgate.Store using PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store adapter and ensures the schema exists.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Load implements chatgate.Store.
func (s *Store) Load(ctx context.Context) (*chatgate.Snapshot, error) {
	var savedAtRaw string
	err := s.pool.QueryRow(ctx, `SELECT value FROM chatgate_meta WHERE key = 'saved_at'`).Scan(&savedAtRaw)
	if err == pgx.ErrNoRows {
		return nil, nil // Never saved is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta: %w", err)
	}

	snap := &chatgate.Snapshot{Users: make(map[chatgate.UserID]chatgate.UserRecord)}
	if t, perr := time.Parse(time.RFC3339Nano, savedAtRaw); perr == nil {
		snap.SavedAt = t
	}

	rows, err := s.pool.Query(ctx, `SELECT user_id, selection, usage FROM chatgate_users`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, selection string
		var usageRaw []byte
		if err := rows.Scan(&userID, &selection, &usageRaw); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}

		rec := chatgate.UserRecord{Selection: chatgate.ProviderID(selection)}
		if len(usageRaw) > 0 && string(usageRaw) != "{}" {
			if err := json.Unmarshal(usageRaw, &rec.Usage); err != nil {
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

// Save implements chatgate.Store.
func (s *Store) Save(ctx context.Context, snap *chatgate.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chatgate_users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	now := time.Now().UTC()
	for userID, rec := range snap.Users {
		usageRaw := []byte("{}")
		if len(rec.Usage) > 0 {
			usageRaw, err = json.Marshal(rec.Usage)
			if err != nil {
				return fmt.Errorf("encode usage for %s: %w", userID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO chatgate_users (user_id, selection, usage, updated_at) VALUES ($1, $2, $3, $4)`,
			string(userID), string(rec.Selection), usageRaw, now); err != nil {
			return fmt.Errorf("insert user %s: %w", userID, err)
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = now
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO chatgate_meta (key, value) VALUES ('saved_at', $1)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		savedAt.Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("write snapshot meta: %w", err)
	}

	return tx.Commit(ctx)
}
