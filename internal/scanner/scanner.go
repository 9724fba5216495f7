// Package scanner enumerates candidate image files inside a gallery period directory.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"golang.org/x/text/unicode/norm"
)

// Record identifies one candidate image file found during a scan.
type Record struct {
	Path    string    // absolute path, unique within a scan
	Name    string    // display name (NFC normalized)
	Ext     string    // lowercase extension including the dot
	Size    int64     // bytes
	ModTime time.Time // last modification
}

var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImageFile checks if a file name has a supported image extension (case-insensitive).
func IsImageFile(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Scan walks root recursively and returns a record for every supported, non-empty image.
// The quarantine directory is skipped so already moved duplicates are not scanned again.
// Entries that cannot be inspected are logged and skipped.
func Scan(root string, logger *slog.Logger) ([]Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	var records []Record
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			logger.Warn("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && d.Name() == constants.DuplicatesDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsImageFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("skipping file", "path", path, "error", err)
			return nil
		}
		// Zero-byte files are typically cloud placeholders that are not available locally.
		if !info.Mode().IsRegular() || info.Size() == 0 {
			return nil
		}

		records = append(records, Record{
			Path:    path,
			Name:    norm.NFC.String(d.Name()),
			Ext:     strings.ToLower(filepath.Ext(d.Name())),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	return records, nil
}

// Stat returns the record of a single image file.
func Stat(path string) (Record, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if !IsImageFile(absPath) {
		return Record{}, fmt.Errorf("%s is not a supported image (jpg, jpeg, png)", path)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return Record{}, err
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return Record{}, fmt.Errorf("%s is not a regular non-empty file", path)
	}

	name := filepath.Base(absPath)
	return Record{
		Path:    absPath,
		Name:    norm.NFC.String(name),
		Ext:     strings.ToLower(filepath.Ext(name)),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}
