// Copyright 2025 Thuy Luu
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/luuthuy2k1-code/finance-app/cloudstore"
	"github.com/luuthuy2k1-code/finance-app/cloudsync"
	"github.com/luuthuy2k1-code/finance-app/config"
	"github.com/luuthuy2k1-code/finance-app/ledger"
	"github.com/luuthuy2k1-code/finance-app/localstore"
)

func main() {
	var (
		serveFlag   = flag.Bool("serve", false, "Host the remote store instead of running the local app")
		verboseFlag = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verboseFlag {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveFlag {
		if err := runServer(ctx, cfg, logger); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	if err := runApp(ctx, cfg, logger); err != nil {
		log.Fatalf("App failed: %v", err)
	}
}

// runApp opens the local store and, when a remote is configured, starts the
// mirror, runs one full reconciliation, and subscribes to the change feed.
func runApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := localstore.Open(cfg.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := ledger.NewService(store, logger)
	wallets, err := svc.Wallets(ctx)
	if err != nil {
		return err
	}
	var total int64
	for _, w := range wallets {
		total += w.Balance
	}
	logger.Info("Local store ready", "path", cfg.DatabasePath,
		"wallets", len(wallets), "total_balance", total)

	if !cfg.SyncEnabled() {
		logger.Info("Remote sync disabled, running local-only")
		<-ctx.Done()
		return nil
	}

	token := func(ctx context.Context) (string, error) { return cfg.Token, nil }
	ownerID := func() string { return cfg.OwnerID }

	remote := &cloudsync.HTTPRemote{
		BaseURL: cfg.RemoteURL,
		Token:   token,
	}

	mirror := cloudsync.NewMirror(store, remote, ownerID, logger)
	mirror.Start(ctx)
	defer mirror.Stop()

	var feed cloudsync.Feed
	if cfg.FeedURL != "" {
		feed = &cloudsync.WebsocketFeed{
			URL:    cfg.FeedURL,
			Token:  token,
			Logger: logger,
		}
	}

	engine := cloudsync.NewEngine(store, remote, feed, ownerID, logger)

	summary := engine.SyncFromCloud(ctx)
	for table, ts := range summary {
		if ts.Error != "" {
			logger.Warn("Table sync failed", "table", table, "error", ts.Error)
		} else {
			logger.Info("Table synced", "table", table,
				"added", ts.Added, "updated", ts.Updated, "deleted", ts.Deleted, "pushed", ts.Pushed)
		}
	}

	if feed != nil {
		cancel, err := engine.SetupRealtimeSync(cfg.OwnerID)
		if err != nil {
			logger.Warn("Realtime sync unavailable", "error", err)
		} else {
			defer cancel()
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// runServer hosts the reference remote store over Postgres.
func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.ServerEnabled() {
		return errors.New("DATABASE_URL and JWT_SECRET must be set to host the store")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	hub := cloudstore.NewHub(logger)
	svc := cloudstore.NewService(pool, hub, logger)
	if err := svc.InitSchema(ctx); err != nil {
		return err
	}

	jwtAuth := cloudstore.NewJWTAuth(cfg.JWTSecret)
	handlers := cloudstore.NewHTTPHandlers(svc, hub, logger)

	mux := http.NewServeMux()
	handlers.Register(mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: jwtAuth.Middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("Remote store listening", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
