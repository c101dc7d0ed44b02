package segment

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateWriteAndReadRange(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)

	w, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	off1, len1, err := w.WriteBlock([]byte("hello"))
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	off2, len2, err := w.WriteBlock([]byte("world!"))
	if err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if off1 != 0 || len1 != 5 || off2 != 5 || len2 != 6 {
		t.Fatalf("unexpected ranges: off1=%d len1=%d off2=%d len2=%d", off1, len1, off2, len2)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	got, err := r.ReadRange(off1, len1)
	if err != nil || string(got) != "hello" {
		t.Fatalf("ReadRange 1: got %q err %v", got, err)
	}
	got, err = r.ReadRange(off2, len2)
	if err != nil || string(got) != "world!" {
		t.Fatalf("ReadRange 2: got %q err %v", got, err)
	}
}

func TestCreateFailsIfExists(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)
	if _, err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Create(path); err == nil {
		t.Fatal("expected second Create of the same path to fail")
	}
}

func TestListIDsOrdersAscendingAndIgnoresOther(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []int{3, 1, 2} {
		if _, err := Create(PathFor(dir, id)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "not-a-segment.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ids, err := ListIDs(dir)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	want := []int{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestListIDsOnMissingDir(t *testing.T) {
	ids, err := ListIDs(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected no error for missing dir, got %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
}

func TestCleanupCompactionTempRemovesOrphans(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(CompactionTempPathFor(dir, 5), []byte("partial"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(PathFor(dir, 1), []byte("real"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := CleanupCompactionTemp(dir); err != nil {
		t.Fatalf("CleanupCompactionTemp: %v", err)
	}

	if _, err := os.Stat(CompactionTempPathFor(dir, 5)); !os.IsNotExist(err) {
		t.Fatal("expected orphaned compaction temp file to be removed")
	}
	if _, err := os.Stat(PathFor(dir, 1)); err != nil {
		t.Fatalf("expected real segment to survive cleanup, stat err: %v", err)
	}
}

func TestRenameCompactionTempPublishesSegment(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(CompactionTempPathFor(dir, 7), []byte("merged"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := RenameCompactionTemp(dir, 7); err != nil {
		t.Fatalf("RenameCompactionTemp: %v", err)
	}
	if _, err := os.Stat(PathFor(dir, 7)); err != nil {
		t.Fatalf("expected published segment to exist, err: %v", err)
	}
}
