// chatgated serves the chat routing API over HTTP. One process fronts all
// configured providers; state survives restarts through the configured store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/botfold/chatgate/pkg/chatgate"
	zerologadapter "github.com/botfold/chatgate/pkg/chatgate/logger/zerolog"
	prommetrics "github.com/botfold/chatgate/pkg/chatgate/metrics/prometheus"
	transporthttp "github.com/botfold/chatgate/transport/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatgated: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zlog, err := newZerolog(cfg)
	if err != nil {
		return err
	}
	logger := zerologadapter.NewLogger(zlog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	specs := buildProviders(cfg)
	if len(specs) == 0 {
		return errors.New("no provider API keys configured")
	}

	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry, "chatgate")

	manager, err := chatgate.New(ctx, store, chatgate.Config{
		Providers: specs,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	handler, err := transporthttp.NewHandler(transporthttp.Config{
		Manager: manager,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprintln(w, "OK")
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Mount("/v1", http.StripPrefix("/v1", handler))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening",
			chatgate.Field{Key: "addr", Value: cfg.Addr},
			chatgate.Field{Key: "store", Value: cfg.Store},
			chatgate.Field{Key: "providers", Value: len(specs)},
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := manager.SaveSnapshot(ctx); err != nil {
					logger.Error("periodic snapshot failed", chatgate.Field{Key: "error", Value: err})
				}
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := manager.SaveSnapshot(shutdownCtx); err != nil {
			logger.Error("final snapshot failed", chatgate.Field{Key: "error", Value: err})
		}
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newZerolog(cfg serverConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse CHATGATE_LOG_LEVEL: %w", err)
	}
	var out = os.Stdout
	logger := zerolog.New(out)
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}
