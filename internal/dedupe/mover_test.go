package dedupe

import (
	"os"
	"path/filepath"
	"testing"
)

// monthDir creates {tmp}/2024/01 and returns it.
func monthDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "2024", "01")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create month dir: %v", err)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func assertContent(t *testing.T, path, expected string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
		return
	}
	if string(data) != expected {
		t.Errorf("%s contains %q; want %q", path, data, expected)
	}
}

func TestMoveDuplicates_LeaderStaysDuplicatesMoved(t *testing.T) {
	dir := monthDir(t)
	leader := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dup := writeFile(t, filepath.Join(dir, "b.jpg"), "B")

	result := MoveDuplicates([][]string{{leader, dup}}, dir)

	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}
	assertContent(t, leader, "A")
	dest := filepath.Join(dir, "duplicates", "b.jpg")
	assertContent(t, dest, "B")
	if _, err := os.Stat(dup); !os.IsNotExist(err) {
		t.Error("expected duplicate to be gone from its original location")
	}

	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", result.Entries)
	}
	e := result.Entries[0]
	if e.Year != "2024" || e.Month != "01" || e.GroupLeader != leader || e.MovedFile != dup || e.NewLocation != dest {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestMoveDuplicates_CollisionSuffix(t *testing.T) {
	dir := monthDir(t)
	lead1 := writeFile(t, filepath.Join(dir, "x.jpg"), "X")
	dup1 := writeFile(t, filepath.Join(dir, "trip", "a.jpg"), "first")
	lead2 := writeFile(t, filepath.Join(dir, "y.jpg"), "Y")
	dup2 := writeFile(t, filepath.Join(dir, "party", "a.jpg"), "second")
	dup3 := writeFile(t, filepath.Join(dir, "misc", "a.jpg"), "third")

	result := MoveDuplicates([][]string{{lead1, dup1}, {lead2, dup2, dup3}}, dir)
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}

	quarantine := filepath.Join(dir, "duplicates")
	assertContent(t, filepath.Join(quarantine, "a.jpg"), "first")
	assertContent(t, filepath.Join(quarantine, "a_1.jpg"), "second")
	assertContent(t, filepath.Join(quarantine, "a_2.jpg"), "third")

	if result.Entries[2].NewLocation != filepath.Join(quarantine, "a_2.jpg") {
		t.Errorf("unexpected new location %s", result.Entries[2].NewLocation)
	}
	if result.Entries[1].GroupLeader != lead2 {
		t.Errorf("expected leader %s, got %s", lead2, result.Entries[1].GroupLeader)
	}
}

func TestMoveDuplicates_ExistingQuarantineFile(t *testing.T) {
	dir := monthDir(t)
	writeFile(t, filepath.Join(dir, "duplicates", "b.jpg"), "old")
	leader := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dup := writeFile(t, filepath.Join(dir, "b.jpg"), "new")

	result := MoveDuplicates([][]string{{leader, dup}}, dir)
	if len(result.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %v (failures %v)", result.Entries, result.Failures)
	}
	assertContent(t, filepath.Join(dir, "duplicates", "b.jpg"), "old")
	assertContent(t, filepath.Join(dir, "duplicates", "b_1.jpg"), "new")
}

func TestMoveDuplicates_FailureDoesNotStopBatch(t *testing.T) {
	dir := monthDir(t)
	leader := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	vanished := filepath.Join(dir, "gone.jpg")
	dup := writeFile(t, filepath.Join(dir, "c.jpg"), "C")
	lead2 := writeFile(t, filepath.Join(dir, "d.jpg"), "D")
	dup2 := writeFile(t, filepath.Join(dir, "e.jpg"), "E")

	result := MoveDuplicates([][]string{{leader, vanished, dup}, {lead2, dup2}}, dir)

	if len(result.Failures) != 1 || result.Failures[0].Path != vanished {
		t.Fatalf("expected one failure for %s, got %v", vanished, result.Failures)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", result.Entries)
	}
	for _, e := range result.Entries {
		if e.MovedFile == vanished {
			t.Error("failed move must not produce a log entry")
		}
	}
	assertContent(t, filepath.Join(dir, "duplicates", "c.jpg"), "C")
	assertContent(t, filepath.Join(dir, "duplicates", "e.jpg"), "E")
}

func TestMoveDuplicates_DryRun(t *testing.T) {
	dir := monthDir(t)
	leader := writeFile(t, filepath.Join(dir, "a.jpg"), "A")
	dup1 := writeFile(t, filepath.Join(dir, "one", "b.jpg"), "B1")
	dup2 := writeFile(t, filepath.Join(dir, "two", "b.jpg"), "B2")

	m := &Mover{DryRun: true}
	result := m.MoveDuplicates([][]string{{leader, dup1, dup2}}, dir)

	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 planned entries, got %v", result.Entries)
	}
	if result.Entries[1].NewLocation != filepath.Join(dir, "duplicates", "b_1.jpg") {
		t.Errorf("expected reserved collision suffix, got %s", result.Entries[1].NewLocation)
	}
	assertContent(t, dup1, "B1")
	assertContent(t, dup2, "B2")
	if _, err := os.Stat(filepath.Join(dir, "duplicates")); !os.IsNotExist(err) {
		t.Error("dry run must not create the quarantine directory")
	}
}

func TestMoveDuplicates_NoGroups(t *testing.T) {
	dir := monthDir(t)
	result := MoveDuplicates(nil, dir)
	if len(result.Entries) != 0 || len(result.Failures) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if _, err := os.Stat(filepath.Join(dir, "duplicates")); !os.IsNotExist(err) {
		t.Error("quarantine directory should only be created when something moves")
	}
}

func TestUniqueDestination(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README"), "x")
	writeFile(t, filepath.Join(dir, "photo.tar.gz"), "x")

	tests := []struct {
		name     string
		reserved map[string]bool
		expected string
	}{
		{"free.jpg", nil, "free.jpg"},
		{"README", nil, "README_1"},
		{"photo.tar.gz", nil, "photo.tar_1.gz"},
		{"free.jpg", map[string]bool{filepath.Join(dir, "free.jpg"): true}, "free_1.jpg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := uniqueDestination(dir, tc.name, tc.reserved)
			if err != nil {
				t.Fatalf("uniqueDestination failed: %v", err)
			}
			if got != filepath.Join(dir, tc.expected) {
				t.Errorf("uniqueDestination(%s) = %s; want %s", tc.name, got, tc.expected)
			}
		})
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "src.jpg"), "payload")
	dst := filepath.Join(dir, "dst.jpg")

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}
	assertContent(t, dst, "payload")

	srcInfo, _ := os.Stat(src)
	dstInfo, _ := os.Stat(dst)
	if !srcInfo.ModTime().Equal(dstInfo.ModTime()) {
		t.Errorf("expected modification time to be preserved")
	}
	if err := copyFile(src, dst); err == nil {
		t.Error("expected error when destination exists")
	}
}
