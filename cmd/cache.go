package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Embedding cache management commands",
	Long: `Commands for managing the optional embedding cache (PostgreSQL with pgvector
or a local SQLite file), configured in the cache section of the config file.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many embeddings are cached",
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cached embeddings of files that no longer exist",
	Long: `Remove cached embeddings whose image is gone from its original path,
for example after the dedupe command moved it into quarantine.`,
	RunE: runCachePrune,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)

	cachePruneCmd.Flags().Bool("dry-run", false, "Only report stale entries")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	cache, err := a.openCache(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer cache.Close()

	count, err := cache.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to count embeddings: %w", err)
	}

	fmt.Printf("Driver:     %s\n", a.cfg.Cache.Driver)
	fmt.Printf("Embeddings: %d\n", count)
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	cache, err := a.openCache(ctx, true)
	if err != nil {
		return err
	}
	defer cache.Close()

	paths, err := cache.Paths(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cached paths: %w", err)
	}

	var stale []string
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			stale = append(stale, p)
		}
	}

	fmt.Printf("Cached: %d, stale: %d\n", len(paths), len(stale))
	if dryRun || len(stale) == 0 {
		for _, p := range stale {
			fmt.Printf("  %s\n", p)
		}
		return nil
	}

	deleted, err := cache.Delete(ctx, stale)
	if err != nil {
		return fmt.Errorf("failed to delete stale embeddings: %w", err)
	}
	a.logger.Info("pruned embedding cache", "deleted", deleted)
	fmt.Printf("Deleted: %d\n", deleted)
	return nil
}
