package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/photo-dedupe/internal/dedupelog"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show what the dedupe logs recorded for a year",
	Long: `Print one line per logged month of a year with the number of moved files and
duplicate groups, read from the central log {logs}/dedupe_log_{year}.csv.

Examples:
  photo-dedupe summary --year 2024
  photo-dedupe summary --year 2024 --files`,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().Int("year", 0, "Year to summarize")
	summaryCmd.Flags().Bool("files", false, "List every moved file")
	summaryCmd.Flags().Bool("mirror", false, "Read the copy inside the gallery instead of the central log")
	summaryCmd.Flags().Bool("json", false, "Output as JSON")
}

// MonthSummary aggregates the log rows of one month.
type MonthSummary struct {
	Month  string `json:"month"`
	Groups int    `json:"groups"`
	Moved  int    `json:"moved"`
}

// summarize groups log rows by month, keeping first-seen month order.
func summarize(entries []dedupelog.Entry) []MonthSummary {
	var order []string
	byMonth := make(map[string]*MonthSummary)
	leaders := make(map[string]map[string]bool)

	for _, e := range entries {
		s, ok := byMonth[e.Month]
		if !ok {
			s = &MonthSummary{Month: e.Month}
			byMonth[e.Month] = s
			leaders[e.Month] = make(map[string]bool)
			order = append(order, e.Month)
		}
		if e.IsSentinel() {
			continue
		}
		s.Moved++
		if !leaders[e.Month][e.GroupLeader] {
			leaders[e.Month][e.GroupLeader] = true
			s.Groups++
		}
	}

	out := make([]MonthSummary, 0, len(order))
	for _, m := range order {
		out = append(out, *byMonth[m])
	}
	return out
}

func runSummary(cmd *cobra.Command, args []string) error {
	year := mustGetInt(cmd, "year")
	if year <= 0 {
		return errors.New("--year is required")
	}
	listFiles := mustGetBool(cmd, "files")
	jsonOutput := mustGetBool(cmd, "json")

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	store := &dedupelog.Store{GalleryRoot: a.cfg.GalleryPath, LogsRoot: a.cfg.LogsPath}
	yearStr := fmt.Sprintf("%04d", year)
	path := store.CentralPath(yearStr)
	if mustGetBool(cmd, "mirror") {
		path = store.MirrorPath(yearStr)
	}

	entries, err := dedupelog.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no dedupe log for %d at %s", year, path)
	}
	if err != nil {
		return err
	}
	months := summarize(entries)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(months)
	}

	fmt.Printf("Dedupe log %s\n\n", path)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tGROUPS\tMOVED")
	total := 0
	for _, m := range months {
		fmt.Fprintf(w, "%s\t%d\t%d\n", m.Month, m.Groups, m.Moved)
		total += m.Moved
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal moved: %d\n", total)

	if listFiles {
		fmt.Println()
		for _, e := range entries {
			if e.IsSentinel() {
				continue
			}
			fmt.Printf("%s/%s  %s -> %s\n", e.Year, e.Month, e.MovedFile, e.NewLocation)
		}
	}
	return nil
}
