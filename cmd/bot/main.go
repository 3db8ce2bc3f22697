package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FAST22588/bot-Discord-v3/internal/bot"
	"github.com/FAST22588/bot-Discord-v3/internal/cache"
	"github.com/FAST22588/bot-Discord-v3/internal/config"
	"github.com/FAST22588/bot-Discord-v3/internal/drive"
	"github.com/FAST22588/bot-Discord-v3/internal/ledger"
	"github.com/FAST22588/bot-Discord-v3/internal/logger"
	"github.com/FAST22588/bot-Discord-v3/internal/ops"
	"github.com/FAST22588/bot-Discord-v3/internal/refund"
	"github.com/FAST22588/bot-Discord-v3/internal/store"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if cfg.DiscordToken == "" {
		log.Fatal().Msg("DISCORD_TOKEN is not set")
	}

	ctx := context.Background()

	var st store.Store
	switch cfg.StoreBackend {
	case "sqlite":
		s, err := store.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.SqlitePath).Msg("failed to open sqlite store")
		}
		st = s
	case "postgres":
		s, err := store.OpenPostgres()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open postgres store")
		}
		if err := s.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate postgres schema")
		}
		defer s.Close()
		st = s
	case "sheets":
		s, err := store.OpenSheets(ctx, cfg.SheetsCredentialsFile, cfg.SheetsSpreadsheetID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open sheets store")
		}
		st = s
	default:
		log.Fatal().Str("backend", cfg.StoreBackend).Msg("unknown store backend")
	}
	log.Info().Str("backend", cfg.StoreBackend).Msg("store ready")

	rdb := cache.InitRedis(ctx)
	if rdb == nil {
		log.Warn().Msg("redis unavailable, catalog listings are uncached")
	} else {
		defer rdb.Close()
	}
	catalogCache := cache.NewCatalog(rdb, cfg.CacheTTL)

	guard, err := refund.Open(cfg.RefundGuardPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RefundGuardPath).Msg("failed to open refund guard")
	}
	defer guard.Close()

	svc := ledger.New(st, catalogCache, log)
	fetcher := drive.NewFetcher(cfg.DriveTimeout)

	shopBot, err := bot.New(cfg.DiscordToken, svc, fetcher, guard,
		cfg.AdminIDs, cfg.LinkDelivery, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build bot")
	}
	if err := shopBot.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start bot")
	}
	defer shopBot.Stop()

	opsServer := ops.NewServer(svc, guard, cfg.OpsJWTSecret,
		cfg.OpsJWTExpiry, cfg.OpsPasswordHash, log)
	httpServer := &http.Server{
		Addr:         cfg.OpsAddr,
		Handler:      opsServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.OpsAddr).Msg("ops API starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops API failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("ops API forced shutdown")
	}
	log.Info().Msg("stopped")
}
