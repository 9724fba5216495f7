package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kozaktomas/photo-dedupe/internal/config"
	"github.com/kozaktomas/photo-dedupe/internal/database"
	"github.com/spf13/cobra"

	// cache backends register themselves with the database package
	_ "github.com/kozaktomas/photo-dedupe/internal/database/postgres"
	_ "github.com/kozaktomas/photo-dedupe/internal/database/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "photo-dedupe",
	Short: "Quarantine near-duplicate photos in a year/month photo archive",
	Long: `Photo Dedupe scans {gallery}/{year}/{month} folders, compares photos using
CLIP image embeddings and moves near-duplicates into a per-month duplicates folder.
Every processed month is recorded in a per-year CSV log.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// app holds what every command needs after the config is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	close  func() error
}

// loadApp loads the config and sets up the logger. Every log line carries a run_id
// so the output of one invocation can be found in a shared log file.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, closeLog := config.SetupLogger(cfg.Log.File, cfg.Log.SlogLevel())
	logger = logger.With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger, close: closeLog}, nil
}

// openCache opens the configured embedding cache, or returns nil when none is set.
// A cache that fails to open is logged and skipped unless required is set.
func (a *app) openCache(ctx context.Context, required bool) (database.EmbeddingCache, error) {
	cache, err := database.OpenCache(ctx, &a.cfg.Cache)
	switch {
	case err == nil:
		a.logger.Debug("embedding cache enabled", "driver", a.cfg.Cache.Driver)
		return cache, nil
	case errors.Is(err, database.ErrCacheDisabled) && !required:
		return nil, nil
	case required:
		return nil, err
	default:
		a.logger.Warn("embedding cache unavailable, continuing without it", "error", err)
		return nil, nil
	}
}
