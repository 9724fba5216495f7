package dedupe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/photo-dedupe/internal/dedupelog"
	"github.com/kozaktomas/photo-dedupe/internal/embedding"
	"github.com/kozaktomas/photo-dedupe/internal/similarity"
)

// colorEmbedder embeds an image as the normalized RGB of its center pixel.
type colorEmbedder struct {
	err error
}

func (e *colorEmbedder) Embed(ctx context.Context, data []byte) (*embedding.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	r, g, bl, _ := img.At(b.Dx()/2, b.Dy()/2).RGBA()
	vec, err := embedding.Normalize([]float32{float32(r), float32(g), float32(bl)})
	if err != nil {
		return nil, err
	}
	return &embedding.Result{Embedding: vec, Dim: 3}, nil
}

func (e *colorEmbedder) Model() string { return "color" }

// recordingLog captures every Save call.
type recordingLog struct {
	calls []savedLog
	err   error
}

type savedLog struct {
	year, month string
	entries     []dedupelog.Entry
}

func (l *recordingLog) Save(entries []dedupelog.Entry, year, month string) error {
	l.calls = append(l.calls, savedLog{year: year, month: month, entries: entries})
	return l.err
}

func writePNG(t *testing.T, path string, c color.RGBA, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return writeFile(t, path, buf.String())
}

// scenarioGallery creates 2024/01 with a and b near-identical red photos,
// c green and d blue.
func scenarioGallery(t *testing.T) (string, string) {
	t.Helper()
	gallery := t.TempDir()
	dir := filepath.Join(gallery, "2024", "01")
	writePNG(t, filepath.Join(dir, "a.png"), color.RGBA{220, 10, 10, 255}, 64, 48)
	writePNG(t, filepath.Join(dir, "b.png"), color.RGBA{215, 14, 12, 255}, 32, 24)
	writePNG(t, filepath.Join(dir, "c.png"), color.RGBA{10, 220, 10, 255}, 40, 40)
	writePNG(t, filepath.Join(dir, "d.png"), color.RGBA{10, 10, 220, 255}, 40, 40)
	return gallery, dir
}

func newRunner(gallery string, log LogWriter) *Runner {
	return &Runner{
		GalleryPath: gallery,
		Threshold:   0.95,
		Leader:      similarity.LeaderEarliest,
		ImageSize:   32,
		Embedder:    &colorEmbedder{},
		Batch:       embedding.BatchOptions{Concurrency: 2},
		Log:         log,
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	gallery, dir := scenarioGallery(t)
	log := &recordingLog{}

	outcomes, err := newRunner(gallery, log).RunPeriods(context.Background(), []Period{{2024, 1}})
	if err != nil {
		t.Fatalf("RunPeriods failed: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0].Status != StatusProcessed {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}
	if outcomes[0].Groups != 1 {
		t.Errorf("expected 1 group, got %d", outcomes[0].Groups)
	}

	if _, err := os.Stat(filepath.Join(dir, "a.png")); err != nil {
		t.Errorf("expected leader a.png to stay in place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "duplicates", "b.png")); err != nil {
		t.Errorf("expected b.png in quarantine: %v", err)
	}
	for _, name := range []string{"c.png", "d.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s untouched: %v", name, err)
		}
	}

	if len(log.calls) != 1 {
		t.Fatalf("expected exactly one log save, got %d", len(log.calls))
	}
	call := log.calls[0]
	if call.year != "2024" || call.month != "01" || len(call.entries) != 1 {
		t.Fatalf("unexpected log call %+v", call)
	}
	e := call.entries[0]
	if e.GroupLeader != filepath.Join(dir, "a.png") ||
		e.MovedFile != filepath.Join(dir, "b.png") ||
		e.NewLocation != filepath.Join(dir, "duplicates", "b.png") {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestRunner_LeaderPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy similarity.LeaderPolicy
		prep   func(t *testing.T, dir string)
		leader string
		moved  string
	}{
		{
			name:   "earliest",
			policy: similarity.LeaderEarliest,
			prep:   func(t *testing.T, dir string) {},
			leader: "a.png",
			moved:  "b.png",
		},
		{
			name:   "largest",
			policy: similarity.LeaderLargest,
			prep: func(t *testing.T, dir string) {
				f, err := os.OpenFile(filepath.Join(dir, "b.png"), os.O_APPEND|os.O_WRONLY, 0)
				if err != nil {
					t.Fatalf("failed to open b.png: %v", err)
				}
				defer f.Close()
				if _, err := f.Write(make([]byte, 64*1024)); err != nil {
					t.Fatalf("failed to pad b.png: %v", err)
				}
			},
			leader: "b.png",
			moved:  "a.png",
		},
		{
			name:   "newest",
			policy: similarity.LeaderNewest,
			prep: func(t *testing.T, dir string) {
				newer := time.Now().Add(time.Hour)
				if err := os.Chtimes(filepath.Join(dir, "b.png"), newer, newer); err != nil {
					t.Fatalf("failed to touch b.png: %v", err)
				}
			},
			leader: "b.png",
			moved:  "a.png",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gallery, dir := scenarioGallery(t)
			tc.prep(t, dir)
			log := &recordingLog{}
			r := newRunner(gallery, log)
			r.Leader = tc.policy

			if _, err := r.RunPeriods(context.Background(), []Period{{2024, 1}}); err != nil {
				t.Fatalf("RunPeriods failed: %v", err)
			}

			entries := log.calls[0].entries
			if len(entries) != 1 {
				t.Fatalf("expected 1 entry, got %+v", entries)
			}
			if entries[0].GroupLeader != filepath.Join(dir, tc.leader) {
				t.Errorf("expected leader %s, got %s", tc.leader, entries[0].GroupLeader)
			}
			if entries[0].MovedFile != filepath.Join(dir, tc.moved) {
				t.Errorf("expected %s moved, got %s", tc.moved, entries[0].MovedFile)
			}
			if _, err := os.Stat(filepath.Join(dir, tc.leader)); err != nil {
				t.Errorf("leader must stay in place: %v", err)
			}
		})
	}
}

func TestRunner_EmptyPeriodsStillLogged(t *testing.T) {
	gallery := t.TempDir()
	writePNG(t, filepath.Join(gallery, "2024", "02", "only.png"), color.RGBA{1, 2, 3, 255}, 8, 8)
	writeFile(t, filepath.Join(gallery, "2024", "03", "broken.jpg"), "not an image")
	writeFile(t, filepath.Join(gallery, "2024", "03", "broken2.png"), "not an image either")
	log := &recordingLog{}

	periods := []Period{{2024, 1}, {2024, 2}, {2024, 3}}
	outcomes, err := newRunner(gallery, log).RunPeriods(context.Background(), periods)
	if err != nil {
		t.Fatalf("RunPeriods failed: %v", err)
	}

	expected := []Status{StatusMissing, StatusInsufficient, StatusInsufficient}
	if len(outcomes) != len(expected) {
		t.Fatalf("expected %d outcomes, got %d", len(expected), len(outcomes))
	}
	for i, status := range expected {
		if outcomes[i].Status != status {
			t.Errorf("period %s: status %s; want %s", periods[i], outcomes[i].Status, status)
		}
	}
	if len(outcomes[2].LoadFailures) != 2 {
		t.Errorf("expected 2 load failures, got %v", outcomes[2].LoadFailures)
	}

	if len(log.calls) != len(periods) {
		t.Fatalf("expected one save per period, got %d", len(log.calls))
	}
	for i, call := range log.calls {
		if len(call.entries) != 0 {
			t.Errorf("period %s: expected empty entries, got %v", periods[i], call.entries)
		}
		if call.month != periods[i].MonthString() {
			t.Errorf("save %d for month %s; want %s", i, call.month, periods[i].MonthString())
		}
	}
}

func TestRunner_EmbeddingFailuresLogEmpty(t *testing.T) {
	gallery, dir := scenarioGallery(t)
	log := &recordingLog{}
	r := newRunner(gallery, log)
	r.Embedder = &colorEmbedder{err: errors.New("embedding server unavailable")}

	outcomes, err := r.RunPeriods(context.Background(), []Period{{2024, 1}})
	if err != nil {
		t.Fatalf("RunPeriods failed: %v", err)
	}
	if outcomes[0].Status != StatusInsufficient || len(outcomes[0].EmbedFailures) != 4 {
		t.Errorf("unexpected outcome %+v", outcomes[0])
	}
	if len(log.calls) != 1 || len(log.calls[0].entries) != 0 {
		t.Errorf("expected a single empty save, got %+v", log.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "duplicates")); !os.IsNotExist(err) {
		t.Error("nothing should be quarantined")
	}
}

func TestRunner_SaveErrorContinues(t *testing.T) {
	gallery := t.TempDir()
	log := &recordingLog{err: errors.New("disk full")}

	outcomes, err := newRunner(gallery, log).RunPeriods(context.Background(), []Period{{2024, 1}, {2024, 2}})
	if err == nil {
		t.Fatal("expected joined save error")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected save error in %v", err)
	}
	if len(log.calls) != 2 || len(outcomes) != 2 {
		t.Errorf("expected both periods to run, got %d saves and %d outcomes", len(log.calls), len(outcomes))
	}
	for _, o := range outcomes {
		if o.Status != StatusFailed || o.Err == nil {
			t.Errorf("expected failed outcome, got %+v", o)
		}
	}
}

func TestRunner_DryRun(t *testing.T) {
	gallery, dir := scenarioGallery(t)
	log := &recordingLog{}
	r := newRunner(gallery, log)
	r.DryRun = true

	if _, err := r.RunPeriods(context.Background(), []Period{{2024, 1}}); err != nil {
		t.Fatalf("RunPeriods failed: %v", err)
	}
	if len(log.calls) != 1 || len(log.calls[0].entries) != 1 {
		t.Fatalf("expected one planned entry, got %+v", log.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "b.png")); err != nil {
		t.Errorf("dry run must leave b.png in place: %v", err)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	gallery, _ := scenarioGallery(t)
	log := &recordingLog{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := newRunner(gallery, log).RunPeriods(ctx, []Period{{2024, 1}, {2024, 2}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(outcomes) != 0 || len(log.calls) != 0 {
		t.Errorf("expected nothing processed, got %d outcomes and %d saves", len(outcomes), len(log.calls))
	}
}

func TestRunner_WithStore(t *testing.T) {
	gallery, _ := scenarioGallery(t)
	logs := t.TempDir()
	store := &dedupelog.Store{GalleryRoot: gallery, LogsRoot: logs}

	if _, err := newRunner(gallery, store).RunPeriods(context.Background(), []Period{{2024, 1}, {2024, 2}}); err != nil {
		t.Fatalf("RunPeriods failed: %v", err)
	}

	entries, err := dedupelog.Read(store.CentralPath("2024"))
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected a move row and a sentinel row, got %v", entries)
	}
	if entries[0].Month != "01" || !strings.HasSuffix(entries[0].MovedFile, "b.png") {
		t.Errorf("unexpected first row %+v", entries[0])
	}
	if entries[1].Month != "02" || !entries[1].IsSentinel() {
		t.Errorf("unexpected second row %+v", entries[1])
	}
}

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	PrintOutcomes(&buf, []Outcome{
		{Period: Period{2024, 1}, Status: StatusMissing},
		{Period: Period{2024, 2}, Status: StatusProcessed, Embedded: 10, Groups: 2, Entries: make([]dedupelog.Entry, 3)},
	})

	out := buf.String()
	if !strings.Contains(out, "2024/01: directory not found") {
		t.Errorf("missing period line in %q", out)
	}
	if !strings.Contains(out, "2024/02: 10 images, 2 groups, 3 moved") {
		t.Errorf("missing processed line in %q", out)
	}
}
