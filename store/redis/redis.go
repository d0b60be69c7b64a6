// Package redis provides a Redis implementation of the chatgate.Store
// interface. User records live in a single hash so a snapshot replace is one
// pipelined transaction.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/botfold/chatgate/pkg/chatgate"
)

// Config holds Redis store configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "chatgate:")
	KeyPrefix string

	// SnapshotTTL expires an untouched snapshot (0 = no expiration)
	SnapshotTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix:   "chatgate:",
		SnapshotTTL: 0,
	}
}

// Store implements chatgate.Store using Redis
type Store struct {
	client redis.UniversalClient
	config Config
}

// New creates a new Redis store adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "chatgate:"
	}
	return &Store{client: client, config: config}, nil
}

func (s *Store) usersKey() string   { return s.config.KeyPrefix + "users" }
func (s *Store) savedAtKey() string { return s.config.KeyPrefix + "saved_at" }

// Load implements chatgate.Store.
func (s *Store) Load(ctx context.Context) (*chatgate.Snapshot, error) {
	savedAtRaw, err := s.client.Get(ctx, s.savedAtKey()).Result()
	if err == redis.Nil {
		return nil, nil // Never saved is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot meta: %w", err)
	}

	snap := &chatgate.Snapshot{Users: make(map[chatgate.UserID]chatgate.UserRecord)}
	if t, perr := time.Parse(time.RFC3339Nano, savedAtRaw); perr == nil {
		snap.SavedAt = t
	}

	fields, err := s.client.HGetAll(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	for userID, raw := range fields {
		var rec chatgate.UserRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", userID, err)
		}
		snap.Users[chatgate.UserID(userID)] = rec
	}

	return snap, nil
}

// Save implements chatgate.Store. The hash is replaced atomically via a
// transactional pipeline.
func (s *Store) Save(ctx context.Context, snap *chatgate.Snapshot) error {
	fields := make(map[string]interface{}, len(snap.Users))
	for userID, rec := range snap.Users {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode user %s: %w", userID, err)
		}
		fields[string(userID)] = raw
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.usersKey())
	if len(fields) > 0 {
		pipe.HSet(ctx, s.usersKey(), fields)
	}
	pipe.Set(ctx, s.savedAtKey(), savedAt.Format(time.RFC3339Nano), s.config.SnapshotTTL)
	if s.config.SnapshotTTL > 0 && len(fields) > 0 {
		pipe.Expire(ctx, s.usersKey(), s.config.SnapshotTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
