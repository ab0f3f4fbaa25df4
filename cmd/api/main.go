package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/babyccino/donationreceipt-backend/internal/api"
	"github.com/babyccino/donationreceipt-backend/internal/config"
	"github.com/babyccino/donationreceipt-backend/internal/db"
	"github.com/babyccino/donationreceipt-backend/internal/dispatch"
	"github.com/babyccino/donationreceipt-backend/internal/donation"
	"github.com/babyccino/donationreceipt-backend/internal/email"
	"github.com/babyccino/donationreceipt-backend/internal/qbo"
	"github.com/babyccino/donationreceipt-backend/internal/store"
	stripeinternal "github.com/babyccino/donationreceipt-backend/internal/stripe"
	"github.com/babyccino/donationreceipt-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// ── Store (atomic multi-step writes) ──────────────────────────────────────
	st := store.New(pool, queries)

	// ── QuickBooks Online ─────────────────────────────────────────────────────
	qboClient := qbo.NewClient(
		cfg.QBOAPIBaseURL+"/v3",
		cfg.QBOOAuthBaseURL,
		cfg.QBOClientID,
		cfg.QBOClientSecret,
	)
	donationService := donation.NewService(qboClient, logger)

	// ── Stripe ────────────────────────────────────────────────────────────────
	stripeClient := stripeinternal.NewClient(cfg.StripeSecretKey)

	// ── Email (Resend) ────────────────────────────────────────────────────────
	mailer := email.NewResendClient(cfg.ResendAPIKey)

	// ── Dispatch pipeline + worker ────────────────────────────────────────────
	sender := dispatch.NewSender(mailer, st, cfg.SendConcurrency, logger)
	runner := worker.NewRunner(sender, queries, worker.RunnerConfig{
		Workers:       cfg.WorkerCount,
		WatchInterval: cfg.WatchInterval,
		JobTimeout:    cfg.JobTimeout,
	}, logger)
	dispatcher := dispatch.NewDispatcher(queries, st, donationService, runner, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		queries,
		dispatcher,
		qboClient,
		donationService,
		stripeClient,
		api.Config{
			StripeWebhookSecret: cfg.StripeWebhookSecret,
			EmailWebhookSecret:  cfg.EmailWebhookSecret,
			Env:                 cfg.Env,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // donation recompute hits QBO twice
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker and HTTP server both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the worker pool in a background goroutine. It blocks until ctx is done.
	go runner.Start(ctx)

	// Start the HTTP server in a background goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// The worker goroutine exits when ctx is cancelled (already done);
	// runner.Start blocks until all its goroutines finish.
	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool, tunes it, and verifies connectivity.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	return pool, db.New(pool), nil
}
