package main

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"

	"github.com/botfold/chatgate/pkg/chatgate"
	"github.com/botfold/chatgate/store/firestore"
	"github.com/botfold/chatgate/store/memory"
	"github.com/botfold/chatgate/store/postgres"
	redisstore "github.com/botfold/chatgate/store/redis"
	"github.com/botfold/chatgate/store/sqlite"
)

// buildStore opens the configured persistence backend. The returned closer
// releases backend connections and is safe to call once at shutdown.
func buildStore(ctx context.Context, cfg serverConfig) (chatgate.Store, func(), error) {
	switch cfg.Store {
	case "memory":
		return memory.New(), func() {}, nil

	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		s, err := redisstore.New(client, redisstore.Config{})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = client.Close() }, nil

	case "postgres":
		config := postgres.DefaultConfig()
		config.ConnectionString = cfg.PostgresDSN
		s, err := postgres.New(ctx, config)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, s.Close, nil

	case "firestore":
		client, err := gcfirestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, nil, fmt.Errorf("create firestore client: %w", err)
		}
		s, err := firestore.New(client, firestore.Config{})
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
