package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// serverConfig is read from the environment (a .env file is honored when
// present). API keys decide which providers get registered.
type serverConfig struct {
	Addr             string
	LogLevel         string
	LogPretty        bool
	SnapshotInterval time.Duration

	Store            string
	SQLitePath       string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostgresDSN      string
	FirestoreProject string

	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	XAIKey       string
	DeepSeekKey  string
}

func loadConfig() (serverConfig, error) {
	cfg := serverConfig{
		Addr:             envOr("CHATGATE_ADDR", ":8080"),
		LogLevel:         envOr("CHATGATE_LOG_LEVEL", "info"),
		LogPretty:        envBool("CHATGATE_LOG_PRETTY"),
		Store:            envOr("CHATGATE_STORE", "memory"),
		SQLitePath:       envOr("CHATGATE_SQLITE_PATH", "chatgate.db"),
		RedisAddr:        envOr("CHATGATE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    os.Getenv("CHATGATE_REDIS_PASSWORD"),
		PostgresDSN:      os.Getenv("CHATGATE_POSTGRES_DSN"),
		FirestoreProject: os.Getenv("CHATGATE_FIRESTORE_PROJECT"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		AnthropicKey:     os.Getenv("ANTHROPIC_API_KEY"),
		GeminiKey:        os.Getenv("GEMINI_API_KEY"),
		XAIKey:           os.Getenv("XAI_API_KEY"),
		DeepSeekKey:      os.Getenv("DEEPSEEK_API_KEY"),
	}

	if raw := os.Getenv("CHATGATE_REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("parse CHATGATE_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	cfg.SnapshotInterval = 30 * time.Second
	if raw := os.Getenv("CHATGATE_SNAPSHOT_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return cfg, fmt.Errorf("parse CHATGATE_SNAPSHOT_INTERVAL: %w", err)
		}
		cfg.SnapshotInterval = d
	}

	switch cfg.Store {
	case "memory", "sqlite", "redis", "postgres", "firestore":
	default:
		return cfg, fmt.Errorf("unknown CHATGATE_STORE %q", cfg.Store)
	}
	if cfg.Store == "postgres" && cfg.PostgresDSN == "" {
		return cfg, fmt.Errorf("CHATGATE_POSTGRES_DSN is required for the postgres store")
	}
	if cfg.Store == "firestore" && cfg.FirestoreProject == "" {
		return cfg, fmt.Errorf("CHATGATE_FIRESTORE_PROJECT is required for the firestore store")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(os.Getenv(key))
	return v
}
