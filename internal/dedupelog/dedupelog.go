// Package dedupelog persists the per-year record of quarantined duplicates.
//
// Every year has a central CSV log under the logs root and a mirrored copy inside the
// gallery. Both files always hold the full cumulative history: each save reads the
// central log, appends the new rows and replaces both files atomically.
package dedupelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-dedupe/internal/constants"
)

// Header is the literal column row of every log file.
var Header = []string{"year", "month", "group_leader", "moved_file", "new_location"}

// Entry is one moved file, or the sentinel row of a period without duplicates.
type Entry struct {
	Year        string
	Month       string
	GroupLeader string
	MovedFile   string
	NewLocation string
}

// NoDuplicates returns the sentinel entry recorded for a period with nothing moved.
func NoDuplicates(year, month string) Entry {
	return Entry{
		Year:        year,
		Month:       month,
		GroupLeader: constants.NoneMarker,
		MovedFile:   constants.NoneMarker,
		NewLocation: constants.NoDuplicatesMarker,
	}
}

// IsSentinel reports whether e marks a period without duplicates.
func (e Entry) IsSentinel() bool {
	return e.MovedFile == constants.NoneMarker && e.NewLocation == constants.NoDuplicatesMarker
}

func (e Entry) record() []string {
	return []string{e.Year, e.Month, e.GroupLeader, e.MovedFile, e.NewLocation}
}

// Store writes logs for one gallery.
type Store struct {
	GalleryRoot string
	LogsRoot    string // must exist, it is never created
}

// CentralPath returns {LogsRoot}/dedupe_log_{year}.csv.
func (s *Store) CentralPath(year string) string {
	return filepath.Join(s.LogsRoot, constants.CentralLogPrefix+year+".csv")
}

// MirrorPath returns {GalleryRoot}/{year}/duplicates_summary/dedupe_log.csv.
func (s *Store) MirrorPath(year string) string {
	return filepath.Join(s.GalleryRoot, year, constants.SummaryDirName, constants.SummaryFileName)
}

// Save appends entries for year/month to the central log and rewrites the mirror with
// the merged history. An empty entries slice appends a single NoDuplicates row.
func (s *Store) Save(entries []Entry, year, month string) error {
	if len(entries) == 0 {
		entries = []Entry{NoDuplicates(year, month)}
	}

	central := s.CentralPath(year)
	existing, err := Read(central)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read existing log: %w", err)
	}
	merged := append(append(make([]Entry, 0, len(existing)+len(entries)), existing...), entries...)

	if info, err := os.Stat(s.LogsRoot); err != nil {
		return fmt.Errorf("logs directory unavailable: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("logs path %s is not a directory", s.LogsRoot)
	}
	if err := writeAtomic(central, merged); err != nil {
		return fmt.Errorf("failed to write central log: %w", err)
	}

	mirror := s.MirrorPath(year)
	if err := os.MkdirAll(filepath.Dir(mirror), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	if err := writeAtomic(mirror, merged); err != nil {
		return fmt.Errorf("failed to write mirrored log: %w", err)
	}
	return nil
}

// Read parses a log file. The header row is required and skipped.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header in %s: %v", path, header)
	}

	var entries []Entry
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		entries = append(entries, Entry{
			Year:        rec[0],
			Month:       rec[1],
			GroupLeader: rec[2],
			MovedFile:   rec[3],
			NewLocation: rec[4],
		})
	}
	return entries, nil
}

// writeAtomic writes entries to a temp file next to path and renames it into place.
func writeAtomic(path string, entries []Entry) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if err := writeEntries(f, entries); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func writeEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(e.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
