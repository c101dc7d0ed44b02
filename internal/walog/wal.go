// Package walog implements the write-ahead log an engine appends every
// mutation to before it is visible in the memtable, so a crash can replay
// whatever made it to disk. Each entry is framed as a block (internal/block)
// containing exactly one record, which reuses the same CRC-checked,
// optionally compressed framing a segment's blocks use rather than
// inventing a second wire format just for the log.
//
// Replay is an iter.Seq2 that yields (record, nil) per recovered entry and
// stops, rather than erroring out, at the first entry it cannot fully
// decode — a WAL's tail is exactly where a crash leaves a half-written
// entry.
package walog

import (
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/Priyanshu23/lsmdb/errs"
	"github.com/Priyanshu23/lsmdb/internal/block"
	"github.com/Priyanshu23/lsmdb/internal/record"
)

// FileName is the WAL's fixed file name within an engine's data directory.
const FileName = "wal.log"

// WAL is an append-only log of not-yet-flushed mutations.
type WAL struct {
	f   *os.File
	dir string
}

// Open opens (creating if absent) the WAL file within dir, appending at
// its current end.
func Open(dir string) (*WAL, error) {
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "walog: open")
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, errs.Wrap(err, errs.CodeIO, "walog: seek to end")
	}
	return &WAL{f: f, dir: dir}, nil
}

// Append writes one record to the log and fsyncs before returning, so a
// successful Append is durable against a crash immediately after.
func (w *WAL) Append(key, value []byte) error {
	b := block.New()
	if err := b.Add(key, value); err != nil {
		return err
	}
	data, err := b.Dump(false)
	if err != nil {
		return err
	}
	if _, err := w.f.Write(data); err != nil {
		return errs.Wrap(err, errs.CodeIO, "walog: append")
	}
	if err := w.f.Sync(); err != nil {
		return errs.Wrap(err, errs.CodeIO, "walog: sync")
	}
	return nil
}

// Replay reads every record recorded so far, in append order, stopping
// silently at the first block it cannot fully decode (a crash-truncated
// tail) rather than surfacing an error for it.
func (w *WAL) Replay() iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		if _, err := w.f.Seek(0, io.SeekStart); err != nil {
			yield(record.Record{}, errs.Wrap(err, errs.CodeIO, "walog: seek to start"))
			return
		}

		data, err := io.ReadAll(w.f)
		if err != nil {
			yield(record.Record{}, errs.Wrap(err, errs.CodeIO, "walog: read"))
			return
		}

		offset := 0
		for offset < len(data) {
			rest := data[offset:]
			if len(rest) < block.HeaderSize {
				return
			}

			blockLen, ok := block.PeekLen(rest)
			if !ok || blockLen > len(rest) {
				return
			}

			stop := false
			cont := true
			err := block.IterFromBinary(rest[:blockLen], true, func(rec record.Record) bool {
				cont = yield(rec, nil)
				stop = !cont
				return cont
			})
			if err != nil {
				return
			}
			if stop {
				return
			}
			offset += blockLen
		}

		if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
			return
		}
	}
}

// Reset truncates the WAL to empty, called right after a successful flush
// has made every record durable in a sealed segment.
func (w *WAL) Reset() error {
	if err := w.f.Truncate(0); err != nil {
		return errs.Wrap(err, errs.CodeIO, "walog: truncate")
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return errs.Wrap(err, errs.CodeIO, "walog: seek to start")
	}
	return nil
}

// Close closes the underlying file.
func (w *WAL) Close() error {
	return w.f.Close()
}
