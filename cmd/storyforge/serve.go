package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/storyforge/storyforge/internal/api"
	"github.com/storyforge/storyforge/internal/audit"
	"github.com/storyforge/storyforge/internal/config"
	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/internal/metrics"
	"github.com/storyforge/storyforge/internal/profiles"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

var shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the entitlements API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Baseline logging for early startup messages
		logging.Init(logging.Config{Format: "auto", Level: "info", Component: "storyforge"})

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logging.Init(logging.Config{
			Format:    cfg.LogFormat,
			Level:     cfg.LogLevel,
			Component: "storyforge",
		})

		return runServer(cmd.Context(), cfg)
	},
}

// loadConfig applies --data-dir before reading the environment so the data
// directory's .env is the one loaded.
func loadConfig() (*config.Config, error) {
	if dataDirFlag != "" {
		if err := os.Setenv("STORYFORGE_DATA_DIR", dataDirFlag); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("version", Version).Str("data_dir", cfg.DataDir).Msg("Starting Storyforge entitlements server")

	store, err := profiles.OpenSQLite(cfg.DatabasePath())
	if err != nil {
		return err
	}
	history, err := audit.OpenSQLite(cfg.AuditDatabasePath())
	if err != nil {
		_ = store.Close()
		return err
	}
	recording := audit.NewRecordingStore(store, history)

	m := metrics.GetEntitlementMetrics()
	cache := profiles.NewCache(recording, cfg.ProfileCacheTTL, profiles.WithLookupObserver(m.RecordCacheLookup))
	defer func() {
		if err := cache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close profile store")
		}
	}()

	gate := entitlements.NewGate(nil,
		entitlements.WithUpgradeURL(cfg.UpgradeURL),
		entitlements.WithObserver(m),
	)
	router := api.NewRouter(api.RouterConfig{
		Profiles:       cache,
		Gate:           gate,
		UsageRecorder:  m,
		AllowedOrigins: cfg.AllowedOrigins,
		UpgradeURL:     cfg.UpgradeURL,
		Version:        Version,
		History:        recording,
	})

	watcher, err := config.NewWatcher(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Config watcher unavailable; LOG_LEVEL changes need a restart")
	} else {
		watcher.OnLogLevelChange(logging.SetGlobalLevel)
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
		defer watcher.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		startMetricsServer(gctx, cfg.MetricsAddr)
	}

	g.Go(func() error {
		warmProfileCache(gctx, cache)
		return nil
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}

// warmProfileCache preloads known profiles so the first request per user
// does not wait on SQLite.
func warmProfileCache(ctx context.Context, cache *profiles.Cache) {
	list, err := cache.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list profiles for cache warmup")
		return
	}
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	if err := cache.Preload(ctx, ids); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("Profile cache warmup incomplete")
		return
	}
	log.Debug().Int("profiles", len(ids)).Msg("Profile cache warmed")
}
