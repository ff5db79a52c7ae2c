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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/pix-panel/internal/cache"
	"github.com/tbourn/pix-panel/internal/events"
	httpapi "github.com/tbourn/pix-panel/internal/http"
	"github.com/tbourn/pix-panel/internal/observability"
	"github.com/tbourn/pix-panel/internal/primepag"
	"github.com/tbourn/pix-panel/internal/repo"
	"github.com/tbourn/pix-panel/internal/sysutil"
)

const shutdownGrace = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Tables are migrated on startup unless SKIP_MIGRATIONS is set. Redis and
Kafka are optional: without REDIS_ADDR settings are read from the database
on every request, and without KAFKA_BROKERS domain events are dropped.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := openDB(!sysutil.IsTruthy(os.Getenv("SKIP_MIGRATIONS")))
	if err != nil {
		return err
	}
	defer closeDB(db)

	publisher, err := events.New(cfg.Kafka)
	if err != nil {
		log.Warn().Err(err).Msg("kafka unavailable, domain events disabled")
		publisher = events.Nop{}
	}
	defer func() { _ = publisher.Close() }()

	deps := httpapi.Deps{DB: db, Events: publisher}
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, config cache disabled")
		} else {
			defer func() { _ = rc.Close() }()
			deps.ConfigCache = rc
		}
	}
	if cfg.PrimePag.ProviderEnabled() {
		deps.Provider = primepag.NewClient(cfg.PrimePag, nil)
	} else {
		log.Warn().Msg("PrimePag credentials missing, charge creation disabled")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", appVersion()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openDB connects to the configured database, traced when OTEL is on, and
// optionally migrates it.
func openDB(migrate bool) (*gorm.DB, error) {
	db, err := repo.Open(cfg.DB, cfg.OTEL.Enabled)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DB.Driver, err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
