package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/photo-dedupe/internal/dedupe"
	"github.com/kozaktomas/photo-dedupe/internal/dedupelog"
	"github.com/kozaktomas/photo-dedupe/internal/embedding"
	"github.com/kozaktomas/photo-dedupe/internal/similarity"
	"github.com/spf13/cobra"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe [YYYY/MM ...]",
	Short: "Move near-duplicate photos of the given months into quarantine",
	Long: `Compare every photo of a month folder with every other one and move near-duplicates
into {gallery}/{year}/{month}/duplicates. One photo of each duplicate group stays in place.

Every processed month is appended to {logs}/dedupe_log_{year}.csv and mirrored to
{gallery}/{year}/duplicates_summary/dedupe_log.csv, including months without duplicates.

Examples:
  # Single month
  photo-dedupe dedupe 2024/01

  # Whole year
  photo-dedupe dedupe --year 2024

  # Range of months
  photo-dedupe dedupe --from 2023-11 --to 2024-02

  # Keep the largest file of each group, stricter threshold
  photo-dedupe dedupe 2024/01 --leader largest --threshold 0.97

  # Preview without moving anything or writing logs
  photo-dedupe dedupe --year 2024 --dry-run`,
	RunE: runDedupe,
}

func init() {
	rootCmd.AddCommand(dedupeCmd)

	dedupeCmd.Flags().Int("year", 0, "Process all twelve months of this year")
	dedupeCmd.Flags().String("from", "", "First month of a range (YYYY/MM)")
	dedupeCmd.Flags().String("to", "", "Last month of a range (YYYY/MM)")
	dedupeCmd.Flags().Float64("threshold", 0, "Minimum cosine similarity for duplicates (default from config)")
	dedupeCmd.Flags().String("leader", "", "Which photo of a group to keep: earliest, largest or newest (default from config)")
	dedupeCmd.Flags().String("logs", "", "Directory for the central logs (default from config)")
	dedupeCmd.Flags().Bool("dry-run", false, "Show what would be moved without moving files or writing logs")
	dedupeCmd.Flags().Int("concurrency", 0, "Parallel embedding requests (default from config)")
}

func runDedupe(cmd *cobra.Command, args []string) error {
	periods, err := resolvePeriods(args, mustGetInt(cmd, "year"), mustGetString(cmd, "from"), mustGetString(cmd, "to"))
	if err != nil {
		return err
	}
	dryRun := mustGetBool(cmd, "dry-run")

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	threshold := cfg.SimilarityThreshold
	if t := mustGetFloat64(cmd, "threshold"); t != 0 {
		threshold = t
	}
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}

	leaderName := cfg.LeaderPolicy
	if l := mustGetString(cmd, "leader"); l != "" {
		leaderName = l
	}
	policy, err := similarity.ParseLeaderPolicy(leaderName)
	if err != nil {
		return err
	}

	logsPath := cfg.LogsPath
	if l := mustGetString(cmd, "logs"); l != "" {
		logsPath = l
	}
	concurrency := cfg.Embedding.Concurrency
	if c := mustGetInt(cmd, "concurrency"); c > 0 {
		concurrency = c
	}

	// Set up context with signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping after the current request...")
			cancel()
		case <-ctx.Done():
		}
	}()

	cache, err := a.openCache(ctx, false)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	var logWriter dedupe.LogWriter = &dedupelog.Store{GalleryRoot: cfg.GalleryPath, LogsRoot: logsPath}
	if dryRun {
		logWriter = &dryRunLog{w: os.Stdout}
		fmt.Println("Mode: DRY RUN (no files will be moved, no logs written)")
	}

	runner := &dedupe.Runner{
		GalleryPath: cfg.GalleryPath,
		Threshold:   threshold,
		Leader:      policy,
		ImageSize:   cfg.ImageSize,
		Embedder:    embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model),
		Batch: embedding.BatchOptions{
			Concurrency: concurrency,
			Cache:       cache,
			Progress:    os.Stderr,
		},
		Log:    logWriter,
		DryRun: dryRun,
		Logger: a.logger,
	}

	a.logger.Info("starting dedupe",
		"gallery", cfg.GalleryPath,
		"periods", len(periods),
		"threshold", threshold,
		"leader", policy,
		"dry_run", dryRun,
	)

	outcomes, err := runner.RunPeriods(ctx, periods)
	fmt.Println()
	dedupe.PrintOutcomes(os.Stdout, outcomes)
	return err
}

// resolvePeriods builds the list of months from positional args, --year or --from/--to.
// Exactly one of the three forms must be used.
func resolvePeriods(args []string, year int, from, to string) ([]dedupe.Period, error) {
	forms := 0
	if len(args) > 0 {
		forms++
	}
	if year != 0 {
		forms++
	}
	if from != "" || to != "" {
		forms++
	}
	if forms != 1 {
		return nil, errors.New("specify months as arguments, --year, or --from/--to (exactly one)")
	}

	switch {
	case len(args) > 0:
		periods := make([]dedupe.Period, 0, len(args))
		for _, arg := range args {
			p, err := dedupe.ParsePeriod(arg)
			if err != nil {
				return nil, err
			}
			periods = append(periods, p)
		}
		return periods, nil
	case year != 0:
		if year < 1 || year > 9999 {
			return nil, fmt.Errorf("invalid year %d", year)
		}
		return dedupe.YearPeriods(year), nil
	default:
		if from == "" || to == "" {
			return nil, errors.New("--from and --to must be used together")
		}
		start, err := dedupe.ParsePeriod(from)
		if err != nil {
			return nil, err
		}
		end, err := dedupe.ParsePeriod(to)
		if err != nil {
			return nil, err
		}
		return dedupe.Range(start, end)
	}
}

// dryRunLog prints planned log rows instead of writing them.
type dryRunLog struct {
	w io.Writer
}

func (l *dryRunLog) Save(entries []dedupelog.Entry, year, month string) error {
	if len(entries) == 0 {
		fmt.Fprintf(l.w, "%s/%s: no duplicates\n", year, month)
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(l.w, "%s/%s: would move %s -> %s (keeping %s)\n", year, month, e.MovedFile, e.NewLocation, e.GroupLeader)
	}
	return nil
}
