package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"github.com/kozaktomas/photo-dedupe/internal/dedupe"
	"github.com/kozaktomas/photo-dedupe/internal/embedding"
	"github.com/kozaktomas/photo-dedupe/internal/imageload"
	"github.com/kozaktomas/photo-dedupe/internal/scanner"
	"github.com/kozaktomas/photo-dedupe/internal/similarity"
	"github.com/spf13/cobra"
)

var similarCmd = &cobra.Command{
	Use:   "similar <image>",
	Short: "Find the photos of a month most similar to an image",
	Long: `Find the photos of one month folder that look most like the given image.

Useful for choosing a --threshold: similarities at or above the threshold are
treated as duplicates by the dedupe command.

Examples:
  photo-dedupe similar ~/Downloads/IMG_1234.jpg --period 2024/01
  photo-dedupe similar /photos/2024/01/a.jpg --period 2024/01 --limit 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().String("period", "", "Month to search (YYYY/MM)")
	similarCmd.Flags().Int("limit", constants.DefaultSimilarLimit, "Maximum number of results")
	similarCmd.Flags().Float64("min-similarity", -1, "Hide results below this cosine similarity")
	similarCmd.Flags().Bool("json", false, "Output as JSON")
}

// SimilarResult is one neighbour of the query image.
type SimilarResult struct {
	Path       string  `json:"path"`
	Similarity float64 `json:"similarity"`
	Duplicate  bool    `json:"duplicate"` // at or above the configured threshold
}

// SimilarOutput represents the JSON output of the similar command
type SimilarOutput struct {
	Query     string          `json:"query"`
	Period    string          `json:"period"`
	Threshold float64         `json:"threshold"`
	Results   []SimilarResult `json:"results"`
	Count     int             `json:"count"`
}

func runSimilar(cmd *cobra.Command, args []string) error {
	periodFlag := mustGetString(cmd, "period")
	if periodFlag == "" {
		return errors.New("--period is required")
	}
	period, err := dedupe.ParsePeriod(periodFlag)
	if err != nil {
		return err
	}
	limit := mustGetInt(cmd, "limit")
	minSimilarity := mustGetFloat64(cmd, "min-similarity")
	jsonOutput := mustGetBool(cmd, "json")

	query, err := scanner.Stat(args[0])
	if err != nil {
		return err
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg
	ctx := cmd.Context()

	dir := period.Dir(cfg.GalleryPath)
	records, err := scanner.Scan(dir, a.logger)
	if err != nil {
		return err
	}

	// the query goes first so its embedding is item 0 when it decodes
	loaded := imageload.Load(append([]scanner.Record{query}, records...), cfg.ImageSize, a.logger)
	if len(loaded.Images) == 0 || loaded.Images[0].Record.Path != query.Path {
		return fmt.Errorf("failed to load %s", query.Path)
	}

	cache, err := a.openCache(ctx, false)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	opts := embedding.BatchOptions{Concurrency: cfg.Embedding.Concurrency, Cache: cache, Logger: a.logger}
	if !jsonOutput {
		opts.Progress = os.Stderr
	}
	batch, err := embedding.EmbedAll(ctx, loaded.Images, embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.Model), opts)
	if err != nil {
		return err
	}
	if len(batch.Items) == 0 || batch.Items[0].Image.Record.Path != query.Path {
		return fmt.Errorf("failed to compute embedding for %s", query.Path)
	}

	idx, err := similarity.BuildIndex(batch.Paths()[1:], batch.Vectors()[1:])
	if err != nil {
		return err
	}
	if idx.Len() == 0 {
		return fmt.Errorf("no photos to compare in %s", dir)
	}

	// the query itself may live in the searched month
	hits, err := idx.Search(batch.Items[0].Vector, limit+1, minSimilarity)
	if err != nil {
		return err
	}
	results := make([]SimilarResult, 0, limit)
	for _, h := range hits {
		if h.Path == query.Path || len(results) == limit {
			continue
		}
		results = append(results, SimilarResult{
			Path:       h.Path,
			Similarity: h.Similarity,
			Duplicate:  h.Similarity >= cfg.SimilarityThreshold,
		})
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(SimilarOutput{
			Query:     query.Path,
			Period:    period.String(),
			Threshold: cfg.SimilarityThreshold,
			Results:   results,
			Count:     len(results),
		})
	}

	fmt.Printf("\nMost similar to %s in %s (threshold %.3f):\n\n", query.Name, period, cfg.SimilarityThreshold)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIMILARITY\tDUPLICATE\tPATH")
	for _, r := range results {
		dup := ""
		if r.Duplicate {
			dup = "yes"
		}
		fmt.Fprintf(w, "%.4f\t%s\t%s\n", r.Similarity, dup, r.Path)
	}
	return w.Flush()
}
