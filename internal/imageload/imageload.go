// Package imageload decodes candidate images and normalizes them for embedding.
package imageload

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/photo-dedupe/internal/scanner"
	"golang.org/x/image/draw"
)

// Image is a successfully decoded image normalized to a square RGB thumbnail.
type Image struct {
	Record scanner.Record
	Data   []byte // JPEG-encoded normalized pixels
}

// Failure describes a record that could not be decoded.
type Failure struct {
	Path string
	Err  error
}

// Result holds the outcome of loading a batch of records.
// Images preserve the relative order of their records.
type Result struct {
	Images   []Image
	Failures []Failure
}

// Paths returns the paths of all loaded images in order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Images))
	for i, img := range r.Images {
		paths[i] = img.Record.Path
	}
	return paths
}

// Load opens every record, applies EXIF orientation, converts to RGB and resizes to size x size.
// A record that fails to decode is reported in Result.Failures and does not abort the batch.
func Load(records []scanner.Record, size int, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.Default()
	}

	result := &Result{Images: make([]Image, 0, len(records))}
	for _, rec := range records {
		data, err := loadOne(rec.Path, size)
		if err != nil {
			logger.Warn("failed to load image", "path", rec.Path, "error", err)
			result.Failures = append(result.Failures, Failure{Path: rec.Path, Err: err})
			continue
		}
		result.Images = append(result.Images, Image{Record: rec, Data: data})
	}
	return result
}

func loadOne(path string, size int) ([]byte, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	normalized := Normalize(img, size)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, normalized, &jpeg.Options{Quality: 95}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Normalize scales img to size x size (ignoring aspect ratio) on an opaque background,
// which also drops any alpha channel.
func Normalize(img image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
