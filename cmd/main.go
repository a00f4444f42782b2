/*
Package main is the entry point for the CompanySync support relay.

It loads configuration, initializes logging, connects to PostgreSQL, starts the relay hub
and the retention sweeper, binds the fixed port (reclaiming it from a stale process when
needed) and shuts everything down on SIGINT or SIGTERM.
*/
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

	"golang.org/x/time/rate"

	"companysync/internal/app/db"
	"companysync/internal/app/relay"
	"companysync/internal/app/storage"
	"companysync/internal/configs"
	"companysync/internal/handler"
	"companysync/internal/pkg/limiter"
	"companysync/internal/pkg/logx"
	"companysync/internal/pkg/netx"
)

func main() {
	if err := configs.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("require_session_token", cfg.RequireSessionToken).
		Dur("retention", cfg.Retention).
		Bool("archive", cfg.ArchiveEnabled()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	defer pool.Close()

	queries := db.New(pool)

	hub := relay.NewHub(queries, relay.NewSettingsModeratorSource(queries))

	var archive storage.ArchiveStore
	if cfg.ArchiveEnabled() {
		archive, err = storage.NewArchiveStore(ctx, storage.ServiceConfig{
			S3BucketName:      cfg.ArchiveBucket,
			S3Endpoint:        cfg.ArchiveEndpoint,
			S3AccessKeyID:     cfg.ArchiveAccessKeyID,
			S3SecretAccessKey: cfg.ArchiveSecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize archive storage")
		}
	}

	sweeper := relay.NewSweeper(queries, archive, cfg.Retention, cfg.SweepInterval)
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sweeper.Run(ctx)
	}()

	router := handler.Router(&handler.AppDeps{
		Hub:            hub,
		Config:         cfg,
		Store:          queries,
		UpgradeLimiter: limiter.NewIPRateLimiter(ctx, rate.Limit(handler.UpgradeRate), handler.UpgradeBurst),
		APILimiter:     limiter.NewIPRateLimiter(ctx, rate.Limit(handler.APIRate), handler.APIBurst),
	})

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	listener := netx.NewListener(netx.Options{
		Reclaim:    cfg.PortReclaim,
		RetryDelay: cfg.PortRetryDelay,
	})

	ln, err := listener.Listen(ctx, cfg.Port)
	if err != nil {
		logx.Error(err, "Relay failed to bind its port", "port", cfg.Port)
		stop()
		<-sweeperDone
		return
	}

	go func() {
		logx.Info(fmt.Sprintf("CompanySync support relay listening on port %d", cfg.Port))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error(err, "Server stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Shutdown()
	<-sweeperDone

	logx.Info("Server gracefully stopped.")
}
