package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"cyberwill/backend/internal/cache"
	"cyberwill/backend/internal/config"
	"cyberwill/backend/internal/db"
	"cyberwill/backend/internal/logging"
	"cyberwill/backend/internal/provider"
	"cyberwill/backend/internal/server"
	"cyberwill/backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With().Str("service", "cyberwill-api").Logger()

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	for _, warning := range cfg.Warnings() {
		logger.Warn().Msg(warning)
	}

	ai, err := provider.New(cfg, logging.WithComponent(logger, "provider"))
	if err != nil {
		logger.Fatal().Err(err).Msg("provider setup failed")
	}

	ctx := context.Background()
	deps := server.Deps{
		Provider: ai,
		Logger:   logging.WithComponent(logger, "http"),
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pool, analyses := connectStore(ctx, cfg, logger)
		defer pool.Close()
		deps.Store = analyses
	} else {
		logger.Info().Msg("DATABASE_URL not set; analyses are not stored")
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		ttl := time.Duration(cfg.AnalysisCacheTTLSeconds) * time.Second
		analysisCache, err := cache.NewRedis(ctx, cfg.RedisURL, ttl)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer analysisCache.Close()
		deps.Cache = analysisCache
	}

	app, err := server.New(cfg, deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("server setup failed")
	}

	// No WriteTimeout: chat responses stream for as long as the provider does.
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("provider", ai.Name()).
			Str("prompt_strategy", cfg.PromptStrategy).
			Msg("cyberwill api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func connectStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*pgxpool.Pool, *store.AnalysisStore) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect failed")
	}

	analyses, err := store.Open(ctx, pool, cfg.DBAutoMigrate)
	if err != nil {
		pool.Close()
		logger.Fatal().Err(err).Msg("database schema check failed")
	}
	return pool, analyses
}
