package segment

import (
	"iter"
	"os"
	"testing"

	"github.com/Priyanshu23/lsmdb/internal/record"
)

func seqOf(recs []record.Record) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for _, r := range recs {
			if !yield(r) {
				return
			}
		}
	}
}

func TestBuildAndLookup(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)

	entries := []record.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte{}},
	}

	built, err := Build(path, seqOf(entries), BuildParams{BlockSize: 4096, Compress: true, FilterSize: 2048, FilterHashes: 3})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Count != 3 {
		t.Fatalf("expected 3 records written, got %d", built.Count)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	rec, found, err := Lookup(r, built.Index, built.Filter, []byte("b"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found || string(rec.Value) != "2" {
		t.Fatalf("expected to find b=2, got %+v found=%v", rec, found)
	}

	_, found, err = Lookup(r, built.Index, built.Filter, []byte("missing"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected missing key not to be found")
	}

	rec, found, err = Lookup(r, built.Index, built.Filter, []byte("c"))
	if err != nil || !found {
		t.Fatalf("expected to find tombstone for c, err=%v found=%v", err, found)
	}
	if len(rec.Value) != 0 {
		t.Fatalf("expected empty tombstone value, got %q", rec.Value)
	}
}

func TestBuildSplitsMultipleBlocks(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)

	var entries []record.Record
	for i := 0; i < 20; i++ {
		entries = append(entries, record.Record{Key: []byte{byte('a' + i)}, Value: []byte("0123456789")})
	}

	built, err := Build(path, seqOf(entries), BuildParams{BlockSize: 32, Compress: false, FilterSize: 1024, FilterHashes: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if built.Index.Len() < 2 {
		t.Fatalf("expected multiple blocks given a tiny block size, got %d", built.Index.Len())
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	for _, e := range entries {
		rec, found, err := Lookup(r, built.Index, built.Filter, e.Key)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", e.Key, err)
		}
		if !found || string(rec.Value) != string(e.Value) {
			t.Fatalf("expected %q=%q, got found=%v value=%q", e.Key, e.Value, found, rec.Value)
		}
	}
}

func TestScanYieldsRecordsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)

	entries := []record.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	if _, err := Build(path, seqOf(entries), BuildParams{BlockSize: 8, Compress: false, FilterSize: 256, FilterHashes: 2}); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	var got []record.Record
	for rec, err := range Scan(r, true) {
		if err != nil {
			t.Fatalf("Scan: %v", err)
		}
		got = append(got, rec)
	}

	if len(got) != len(entries) {
		t.Fatalf("expected %d records, got %d", len(entries), len(got))
	}
	for i := range entries {
		if string(got[i].Key) != string(entries[i].Key) || string(got[i].Value) != string(entries[i].Value) {
			t.Fatalf("record %d mismatch: got %+v want %+v", i, got[i], entries[i])
		}
	}
}

func TestReindexRebuildsIndexAndFilter(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)

	entries := []record.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	params := BuildParams{BlockSize: 8, Compress: true, FilterSize: 512, FilterHashes: 3}
	if _, err := Build(path, seqOf(entries), params); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	built, complete, err := Reindex(r, params)
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	if !complete {
		t.Fatal("expected a well-formed segment to reindex as complete")
	}
	if built.Count != len(entries) {
		t.Fatalf("expected %d records counted, got %d", len(entries), built.Count)
	}

	for _, e := range entries {
		rec, found, err := Lookup(r, built.Index, built.Filter, e.Key)
		if err != nil || !found || string(rec.Value) != string(e.Value) {
			t.Fatalf("expected %q=%q after reindex, got found=%v value=%q err=%v", e.Key, e.Value, found, rec.Value, err)
		}
	}
}

func TestReindexDetectsTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 1)

	entries := []record.Record{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}
	params := BuildParams{BlockSize: 4096, Compress: false, FilterSize: 512, FilterHashes: 3}
	if _, err := Build(path, seqOf(entries), params); err != nil {
		t.Fatalf("Build: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-1); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	_, complete, err := Reindex(r, params)
	if err != nil {
		t.Fatalf("expected no hard error for a truncated tail, got %v", err)
	}
	if complete {
		t.Fatal("expected a truncated tail to report incomplete")
	}
}
