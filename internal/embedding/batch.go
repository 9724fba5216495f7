package embedding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kozaktomas/photo-dedupe/internal/database"
	"github.com/kozaktomas/photo-dedupe/internal/imageload"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// BatchOptions configures EmbedAll.
type BatchOptions struct {
	Concurrency int                     // parallel requests, defaults to 1
	Cache       database.EmbeddingCache // optional
	Progress    io.Writer               // progress bar output, nil disables it
	Logger      *slog.Logger
}

// Item is an image paired with its embedding.
type Item struct {
	Image  imageload.Image
	Vector []float32
}

// Failure describes an image whose embedding could not be computed.
type Failure struct {
	Path string
	Err  error
}

// BatchResult holds embeddings in the same relative order as the input images.
type BatchResult struct {
	Items     []Item
	Failures  []Failure
	CacheHits int
}

// Vectors returns the embeddings of all items in order.
func (r *BatchResult) Vectors() [][]float32 {
	vectors := make([][]float32, len(r.Items))
	for i, item := range r.Items {
		vectors[i] = item.Vector
	}
	return vectors
}

// Paths returns the paths of all items in order.
func (r *BatchResult) Paths() []string {
	paths := make([]string, len(r.Items))
	for i, item := range r.Items {
		paths[i] = item.Image.Record.Path
	}
	return paths
}

type slot struct {
	vector []float32
	err    error
	cached bool
}

// EmbedAll computes embeddings for images with bounded concurrency.
// A failed image is reported in BatchResult.Failures and does not abort the batch;
// only context cancellation returns an error.
func EmbedAll(ctx context.Context, images []imageload.Image, embedder Embedder, opts BatchOptions) (*BatchResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	bar := newProgressBar(len(images), opts.Progress, concurrency)
	slots := make([]slot, len(images))
	var barMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range images {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = embedOne(gctx, images[i], embedder, opts.Cache, logger)
			barMu.Lock()
			bar.Add(1)
			barMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embedding interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedding interrupted: %w", err)
	}
	bar.Finish()

	result := &BatchResult{Items: make([]Item, 0, len(images))}
	for i, s := range slots {
		if s.err != nil {
			logger.Warn("failed to embed image", "path", images[i].Record.Path, "error", s.err)
			result.Failures = append(result.Failures, Failure{Path: images[i].Record.Path, Err: s.err})
			continue
		}
		if s.cached {
			result.CacheHits++
		}
		result.Items = append(result.Items, Item{Image: images[i], Vector: s.vector})
	}
	return result, nil
}

func embedOne(ctx context.Context, img imageload.Image, embedder Embedder, cache database.EmbeddingCache, logger *slog.Logger) slot {
	rec := img.Record
	model := embedder.Model()

	if cache != nil {
		stored, err := cache.Get(ctx, rec.Path)
		if err != nil {
			logger.Warn("embedding cache lookup failed", "path", rec.Path, "error", err)
		} else if stored != nil && stored.Fresh(rec.Size, rec.ModTime, model) {
			return slot{vector: stored.Embedding, cached: true}
		}
	}

	res, err := embedder.Embed(ctx, img.Data)
	if err != nil {
		return slot{err: err}
	}

	if cache != nil {
		err := cache.Save(ctx, database.StoredEmbedding{
			Path:      rec.Path,
			Size:      rec.Size,
			ModTime:   rec.ModTime,
			Embedding: res.Embedding,
			Model:     model,
			Dim:       res.Dim,
		})
		if err != nil {
			logger.Warn("failed to cache embedding", "path", rec.Path, "error", err)
		}
	}

	return slot{vector: res.Embedding}
}

func newProgressBar(total int, w io.Writer, concurrency int) *progressbar.ProgressBar {
	if w == nil {
		return progressbar.NewOptions(total, progressbar.OptionSetVisibility(false))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(fmt.Sprintf("Computing embeddings (%d workers)", concurrency)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}
