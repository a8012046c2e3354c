// Command osintd runs the lookup dispatch service: an HTTP API over the
// SQLite-backed store that the bot transport calls for every user request.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/datatrace/osint-backend/internal/backup"
	"github.com/datatrace/osint-backend/internal/config"
	httpapi "github.com/datatrace/osint-backend/internal/http"
	"github.com/datatrace/osint-backend/internal/lookup"
	"github.com/datatrace/osint-backend/internal/observability"
	"github.com/datatrace/osint-backend/internal/repo"
	"github.com/datatrace/osint-backend/internal/sysutil"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		if errors.Is(err, repo.ErrCorrupt) {
			log.Fatal().Str("path", cfg.DBPath).
				Msg("store failed integrity check; restore a backup snapshot before restarting")
		}
		log.Fatal().Err(err).Msg("opening store failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Warn().Err(err).Msg("store tracing setup failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("schema migration failed")
	}

	// Endpoint templates from the environment override the defaults.
	endpoints := lookup.DefaultEndpoints()
	for qtype, tpl := range cfg.LookupEndpoints {
		endpoints[qtype] = tpl
	}
	provider := lookup.NewHTTPProvider(endpoints, nil, cfg.LookupTimeout)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	dispatchSvc := httpapi.RegisterRoutes(r, db, provider, cfg)

	// Expired cache rows are invisible to reads but still occupy the table;
	// sweep them periodically.
	go dispatchSvc.Cache.RunJanitor(ctx, cfg.CachePurgeInterval)

	if cfg.BackupEnabled {
		runner := &backup.Runner{
			DB:       db,
			Dir:      cfg.BackupDir,
			Interval: cfg.BackupInterval,
			Keep:     cfg.BackupKeep,
		}
		go runner.Start(ctx)
	}

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
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
