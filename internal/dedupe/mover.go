package dedupe

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kozaktomas/photo-dedupe/internal/constants"
	"github.com/kozaktomas/photo-dedupe/internal/dedupelog"
)

// MoveFailure is a group member that could not be quarantined.
type MoveFailure struct {
	Path string
	Err  error
}

// MoveResult collects the outcome of quarantining a period's duplicates.
type MoveResult struct {
	Entries  []dedupelog.Entry // one per moved file
	Failures []MoveFailure
}

// Mover relocates non-leader group members into the quarantine folder.
type Mover struct {
	DryRun bool // plan moves without touching the filesystem
	Logger *slog.Logger
}

// MoveDuplicates quarantines duplicates with a default Mover.
func MoveDuplicates(groups [][]string, monthDir string) MoveResult {
	return (&Mover{}).MoveDuplicates(groups, monthDir)
}

// MoveDuplicates moves every member but the first of each group into
// {monthDir}/duplicates, keeping the base name and adding _1, _2, ... on collision.
// A failed move is recorded and the remaining files are still processed.
func (m *Mover) MoveDuplicates(groups [][]string, monthDir string) MoveResult {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var result MoveResult
	if countMoves(groups) == 0 {
		return result
	}

	monthDir = filepath.Clean(monthDir)
	year := filepath.Base(filepath.Dir(monthDir))
	month := filepath.Base(monthDir)
	quarantine := filepath.Join(monthDir, constants.DuplicatesDirName)

	if !m.DryRun {
		if err := os.MkdirAll(quarantine, 0o755); err != nil {
			err = fmt.Errorf("failed to create quarantine directory: %w", err)
			logger.Error("cannot quarantine duplicates", "dir", quarantine, "error", err)
			for _, group := range groups {
				if len(group) < 2 {
					continue
				}
				for _, path := range group[1:] {
					result.Failures = append(result.Failures, MoveFailure{Path: path, Err: err})
				}
			}
			return result
		}
	}

	reserved := make(map[string]bool)
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		leader := group[0]
		for _, path := range group[1:] {
			dest, err := uniqueDestination(quarantine, filepath.Base(path), reserved)
			if err == nil && !m.DryRun {
				err = moveFile(path, dest)
			}
			if err != nil {
				logger.Warn("failed to move duplicate", "path", path, "error", err)
				result.Failures = append(result.Failures, MoveFailure{Path: path, Err: err})
				continue
			}
			reserved[dest] = true
			logger.Debug("moved duplicate", "path", path, "dest", dest, "leader", leader, "dry_run", m.DryRun)
			result.Entries = append(result.Entries, dedupelog.Entry{
				Year:        year,
				Month:       month,
				GroupLeader: leader,
				MovedFile:   path,
				NewLocation: dest,
			})
		}
	}
	return result
}

func countMoves(groups [][]string) int {
	n := 0
	for _, g := range groups {
		if len(g) > 1 {
			n += len(g) - 1
		}
	}
	return n
}

// uniqueDestination returns dir/name, or dir/stem_N.ext for the smallest N that is
// neither on disk nor reserved.
func uniqueDestination(dir, name string, reserved map[string]bool) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for n := 1; ; n++ {
		taken, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken && !reserved[candidate] {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// moveFile renames src to dst, copying across filesystems when rename is not possible.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		os.Remove(dst)
		return fmt.Errorf("cross-device copy failed: %w", err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
