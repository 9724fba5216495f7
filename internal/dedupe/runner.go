// Package dedupe quarantines near-duplicate photos month by month.
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"github.com/kozaktomas/photo-dedupe/internal/dedupelog"
	"github.com/kozaktomas/photo-dedupe/internal/embedding"
	"github.com/kozaktomas/photo-dedupe/internal/imageload"
	"github.com/kozaktomas/photo-dedupe/internal/scanner"
	"github.com/kozaktomas/photo-dedupe/internal/similarity"
)

// LogWriter persists the log entries of one period.
type LogWriter interface {
	Save(entries []dedupelog.Entry, year, month string) error
}

// Status summarizes how far a period got.
type Status string

const (
	StatusMissing      Status = "missing"      // month directory does not exist
	StatusInsufficient Status = "insufficient" // fewer than two usable images
	StatusProcessed    Status = "processed"
	StatusFailed       Status = "failed"
)

// Outcome reports what happened to one period.
type Outcome struct {
	Period        Period
	Status        Status
	Scanned       int
	Loaded        int
	Embedded      int
	CacheHits     int
	Groups        int
	Entries       []dedupelog.Entry
	LoadFailures  []imageload.Failure
	EmbedFailures []embedding.Failure
	MoveFailures  []MoveFailure
	Err           error // scan or log write failure
}

// Runner processes periods one after another.
type Runner struct {
	GalleryPath string
	Threshold   float64
	Leader      similarity.LeaderPolicy
	ImageSize   int
	Embedder    embedding.Embedder
	Batch       embedding.BatchOptions
	Log         LogWriter
	DryRun      bool
	Logger      *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunPeriods processes each period in order and writes exactly one log save per
// processed period. A failed save is recorded on the outcome and returned joined
// with the other failures once all periods ran. Cancelling ctx stops before the next
// period; a period interrupted while embedding is not logged.
func (r *Runner) RunPeriods(ctx context.Context, periods []Period) ([]Outcome, error) {
	var outcomes []Outcome
	var errs []error

	for _, p := range periods {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		out, err := r.runPeriod(ctx, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("period %s: %w", p, err))
			break
		}
		outcomes = append(outcomes, out)
		if out.Err != nil {
			errs = append(errs, fmt.Errorf("period %s: %w", p, out.Err))
		}
	}
	return outcomes, errors.Join(errs...)
}

// runPeriod returns an error only when ctx is cancelled mid-period.
func (r *Runner) runPeriod(ctx context.Context, p Period) (Outcome, error) {
	logger := r.logger().With("period", p.String())
	out := Outcome{Period: p, Status: StatusProcessed}
	dir := p.Dir(r.GalleryPath)

	entries, err := r.collect(ctx, p, dir, &out, logger)
	if err != nil {
		return out, err
	}

	if err := r.Log.Save(entries, p.YearString(), p.MonthString()); err != nil {
		logger.Error("failed to save dedupe log", "error", err)
		out.Err = errors.Join(out.Err, err)
		out.Status = StatusFailed
		return out, nil
	}

	logger.Info("period done",
		"status", out.Status,
		"images", out.Embedded,
		"groups", out.Groups,
		"moved", len(out.Entries),
		"failures", len(out.LoadFailures)+len(out.EmbedFailures)+len(out.MoveFailures),
	)
	return out, nil
}

// collect runs the pipeline up to moving files and returns the entries to log.
func (r *Runner) collect(ctx context.Context, p Period, dir string, out *Outcome, logger *slog.Logger) ([]dedupelog.Entry, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Info("month directory not found, skipping", "dir", dir)
		out.Status = StatusMissing
		return nil, nil
	}

	records, err := scanner.Scan(dir, logger)
	if err != nil {
		logger.Error("failed to scan month directory", "dir", dir, "error", err)
		out.Status = StatusFailed
		out.Err = err
		return nil, nil
	}
	out.Scanned = len(records)
	if len(records) < constants.MinImagesPerPeriod {
		logger.Info("not enough images to compare", "found", len(records))
		out.Status = StatusInsufficient
		return nil, nil
	}

	loaded := imageload.Load(records, r.ImageSize, logger)
	out.Loaded = len(loaded.Images)
	out.LoadFailures = loaded.Failures
	if len(loaded.Images) < constants.MinImagesPerPeriod {
		logger.Info("not enough valid images", "loaded", len(loaded.Images))
		out.Status = StatusInsufficient
		return nil, nil
	}

	batch, err := embedding.EmbedAll(ctx, loaded.Images, r.Embedder, r.batchOptions(logger))
	if err != nil {
		return nil, err
	}
	out.Embedded = len(batch.Items)
	out.CacheHits = batch.CacheHits
	out.EmbedFailures = batch.Failures
	if len(batch.Items) < constants.MinImagesPerPeriod {
		logger.Info("not enough embedded images", "embedded", len(batch.Items))
		out.Status = StatusInsufficient
		return nil, nil
	}

	matrix, err := similarity.ComputeMatrix(batch.Vectors())
	if err != nil {
		logger.Error("failed to compare embeddings", "error", err)
		out.Status = StatusFailed
		out.Err = err
		return nil, nil
	}

	groups := r.resolveGroups(similarity.GroupIndices(matrix, r.Threshold), batch.Items)
	out.Groups = len(groups)

	mover := &Mover{DryRun: r.DryRun, Logger: logger}
	moved := mover.MoveDuplicates(groups, dir)
	out.Entries = moved.Entries
	out.MoveFailures = moved.Failures
	return moved.Entries, nil
}

// resolveGroups applies the leader policy and maps indices back to paths.
func (r *Runner) resolveGroups(indexGroups [][]int, items []embedding.Item) [][]string {
	policy := r.Leader
	if policy == "" {
		policy = similarity.LeaderEarliest
	}

	groups := make([][]string, 0, len(indexGroups))
	for _, idx := range indexGroups {
		candidates := make([]similarity.Candidate, len(idx))
		for k, i := range idx {
			rec := items[i].Image.Record
			candidates[k] = similarity.Candidate{Index: i, Path: rec.Path, Size: rec.Size, ModTime: rec.ModTime}
		}
		groups = append(groups, similarity.Paths(policy.OrderGroup(candidates)))
	}
	return groups
}

func (r *Runner) batchOptions(logger *slog.Logger) embedding.BatchOptions {
	opts := r.Batch
	opts.Logger = logger
	return opts
}

// PrintOutcomes writes a one-line summary per period.
func PrintOutcomes(w io.Writer, outcomes []Outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusMissing:
			fmt.Fprintf(w, "%s: directory not found\n", o.Period)
		case StatusInsufficient:
			fmt.Fprintf(w, "%s: not enough images (%d scanned, %d loaded, %d embedded)\n",
				o.Period, o.Scanned, o.Loaded, o.Embedded)
		case StatusFailed:
			fmt.Fprintf(w, "%s: failed: %v\n", o.Period, o.Err)
		default:
			fmt.Fprintf(w, "%s: %d images, %d groups, %d moved", o.Period, o.Embedded, o.Groups, len(o.Entries))
			if n := len(o.LoadFailures) + len(o.EmbedFailures) + len(o.MoveFailures); n > 0 {
				fmt.Fprintf(w, ", %d failed", n)
			}
			fmt.Fprintln(w)
		}
	}
}
