// Package segment manages the immutable, on-disk files an engine flushes
// its memtable into and the compactor merges. Segment files are discovered
// by regexp-matching and numerically ordering their names, the same way a
// log-structured segment manager finds its existing segments on disk;
// unlike a single append-only active file, a segment here is sealed at
// creation (write-once) and is always one of a numbered chain the engine
// and compactor share.
package segment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/Priyanshu23/lsmdb/errs"
)

const (
	compactionTempPrefix = "_compact_segment."
)

var segmentFileNamePattern = regexp.MustCompile(`^segment\.(\d+)$`)
var compactionTempPattern = regexp.MustCompile(`^_compact_segment\.(\d+)$`)

// PathFor returns the on-disk path of segment id within dir.
func PathFor(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("segment.%d", id))
}

// CompactionTempPathFor returns the scratch path a compaction pass writes
// its merged output to before renaming it into place. A file at this path
// left behind by a crash mid-compaction is orphaned and safe to remove.
func CompactionTempPathFor(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d", compactionTempPrefix, id))
}

// ListIDs returns every sealed segment's id under dir, ascending.
func ListIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.Wrap(err, errs.CodeIO, "segment: read directory")
	}

	var ids []int
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		matches := segmentFileNamePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids, nil
}

// CleanupCompactionTemp removes any _compact_segment.<N> scratch files left
// behind by a compaction tick that crashed mid-write, per the startup
// recovery step: a crash between "write merged output" and "rename into
// place" must never leave a half-written file mistaken for a real segment.
func CleanupCompactionTemp(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errs.Wrap(err, errs.CodeIO, "segment: read directory")
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if !compactionTempPattern.MatchString(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return errs.Wrap(err, errs.CodeIO, "segment: remove orphaned compaction temp file")
		}
	}
	return nil
}

// RenameCompactionTemp atomically publishes a completed compaction's
// output by renaming its scratch file into its final segment path.
func RenameCompactionTemp(dir string, id int) error {
	if err := os.Rename(CompactionTempPathFor(dir, id), PathFor(dir, id)); err != nil {
		return errs.Wrap(err, errs.CodeIO, "segment: publish compacted segment")
	}
	return nil
}

// Remove deletes segment id's file from dir, e.g. after it has been
// subsumed by a compaction pass.
func Remove(dir string, id int) error {
	if err := os.Remove(PathFor(dir, id)); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(err, errs.CodeIO, "segment: remove")
	}
	return nil
}

// Writer appends blocks to a segment file being built, either by a memtable
// flush or by the compactor, tracking each block's byte range as it goes.
type Writer struct {
	f      *os.File
	offset int64
}

// Create opens path for exclusive creation; it fails if the file already
// exists, since a segment, once created, is never reopened for append.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "segment: create")
	}
	return &Writer{f: f}, nil
}

// WriteBlock appends a pre-serialized block and returns its byte range
// within the file.
func (w *Writer) WriteBlock(data []byte) (offset int64, length int64, err error) {
	n, err := w.f.Write(data)
	if err != nil {
		return 0, 0, errs.Wrap(err, errs.CodeIO, "segment: write block")
	}
	offset = w.offset
	length = int64(n)
	w.offset += length
	return offset, length, nil
}

// Sync flushes the writer's file to stable storage.
func (w *Writer) Sync() error {
	if err := w.f.Sync(); err != nil {
		return errs.Wrap(err, errs.CodeIO, "segment: sync")
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

// Reader provides random-access reads over a sealed segment file.
type Reader struct {
	f    *os.File
	size int64
}

// Open opens an existing segment file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "segment: open")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.Wrap(err, errs.CodeIO, "segment: stat")
	}
	return &Reader{f: f, size: info.Size()}, nil
}

// Size returns the segment file's total byte length.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadRange reads exactly length bytes starting at offset.
func (r *Reader) ReadRange(offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := r.f.ReadAt(buf, offset); err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "segment: read range")
	}
	return buf, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

var _ io.Closer = (*Reader)(nil)
