package lsmdb

import (
	"iter"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Priyanshu23/lsmdb/config"
	"github.com/Priyanshu23/lsmdb/errs"
	"github.com/Priyanshu23/lsmdb/internal/chain"
	"github.com/Priyanshu23/lsmdb/internal/compactor"
	"github.com/Priyanshu23/lsmdb/internal/memtable"
	"github.com/Priyanshu23/lsmdb/internal/record"
	"github.com/Priyanshu23/lsmdb/internal/segment"
	"github.com/Priyanshu23/lsmdb/internal/walog"
)

// recordsOf adapts a memtable's in-order entry stream to the record.Record
// stream segment.Build consumes, since a flush and a compaction pass share
// one block-building path keyed on the wire record type.
func recordsOf(entries iter.Seq[memtable.Entry]) iter.Seq[record.Record] {
	return func(yield func(record.Record) bool) {
		for e := range entries {
			if !yield(record.Record{Key: e.Key, Value: e.Value}) {
				return
			}
		}
	}
}

// Engine is one open database: an in-memory memtable backed by a
// write-ahead log, a chain of immutable on-disk segments, and a
// background compactor. An Engine supports one writer; readers and the
// compactor run concurrently with it.
type Engine struct {
	dir  string
	opts config.Options
	log  *zap.SugaredLogger

	// memMu guards mem, wal, and nextID: everything a plain put touches
	// without ever acquiring the chain mutex. A flush is the exception —
	// it holds memMu for its own duration and additionally holds the
	// chain mutex for the whole flush: segment write, index install, and
	// WAL reset.
	memMu  sync.Mutex
	mem    *memtable.Memtable
	wal    *walog.WAL
	nextID int64

	chain     *chain.Chain
	compactor *compactor.Compactor

	closeOnce sync.Once
	closeErr  error
}

// Open opens the database at dir, creating it on first use. On reopen it
// removes any orphaned compaction temp files, rebuilds the index chain by
// scanning existing segments (discarding a corrupt tail segment in favor
// of WAL replay), and replays the WAL into a fresh memtable.
func Open(dir string, opts ...config.Option) (*Engine, error) {
	options := config.Apply(opts...)
	log := options.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(err, errs.CodeIO, "lsmdb: create data directory")
	}

	if err := segment.CleanupCompactionTemp(dir); err != nil {
		return nil, err
	}

	ch := chain.New()
	nextID, err := rebuildChain(dir, options, log, ch)
	if err != nil {
		return nil, err
	}

	wal, err := walog.Open(dir)
	if err != nil {
		return nil, err
	}

	mem := memtable.New()
	for rec, rerr := range wal.Replay() {
		if rerr != nil {
			wal.Close()
			return nil, rerr
		}
		mem.Put(rec.Key, rec.Value)
	}

	e := &Engine{
		dir:    dir,
		opts:   options,
		log:    log,
		mem:    mem,
		wal:    wal,
		nextID: int64(nextID),
		chain:  ch,
	}
	e.compactor = compactor.New(dir, ch, options)
	e.compactor.Start()

	return e, nil
}

// rebuildChain scans dir's existing segment files, oldest to newest,
// reindexing each one. A corrupt or truncated newest segment is removed
// outright and left for WAL replay to make whole; the same condition on
// any older segment is unrecoverable. It returns the next segment id to
// assign on the following flush.
func rebuildChain(dir string, options config.Options, log *zap.SugaredLogger, ch *chain.Chain) (int, error) {
	ids, err := segment.ListIDs(dir)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	params := segment.BuildParams{
		BlockSize:    options.BlockSize,
		Compress:     options.BlockCompression,
		FilterSize:   options.FilterSize,
		FilterHashes: options.FilterHashes,
	}

	nodes := make([]chain.Node, 0, len(ids))
	for i, id := range ids {
		isNewest := i == len(ids)-1

		r, err := segment.Open(segment.PathFor(dir, id))
		if err != nil {
			return 0, err
		}
		built, complete, rerr := segment.Reindex(r, params)
		closeErr := r.Close()

		if rerr != nil || !complete {
			if isNewest {
				log.Warnw("removing corrupt or truncated tail segment during recovery", "id", id, "error", rerr)
				if err := segment.Remove(dir, id); err != nil {
					return 0, err
				}
				continue
			}
			if rerr == nil {
				rerr = errs.New(errs.CodeCorruption, "lsmdb: truncated non-tail segment")
			}
			return 0, errs.Wrap(rerr, errs.CodeUnrecoverable, "lsmdb: corrupt non-tail segment during recovery")
		}
		if closeErr != nil {
			return 0, errs.Wrap(closeErr, errs.CodeIO, "lsmdb: close segment during recovery")
		}

		nodes = append(nodes, chain.Node{ID: id, Index: built.Index, Filter: built.Filter})
	}

	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
	ch.Load(nodes)

	return ids[len(ids)-1] + 1, nil
}

// Put inserts or overwrites key's value. A put that pushes the memtable
// past its configured flush threshold synchronously flushes before
// admitting the new record, so a single oversize record is always
// admitted alone into the memtable that follows it.
func (e *Engine) Put(key, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return errs.Wrap(err, errs.CodeInvalidArgument, "lsmdb: put")
	}

	e.memMu.Lock()
	defer e.memMu.Unlock()

	delta := int64(len(key) + len(value))
	if e.mem.BytesUsed()+delta > e.opts.FlushSize {
		if err := e.flushLocked(); err != nil {
			return err
		}
	}

	if err := e.wal.Append(key, value); err != nil {
		return err
	}
	e.mem.Put(key, value)
	return nil
}

// Delete records a tombstone for key.
func (e *Engine) Delete(key []byte) error {
	return e.Put(key, nil)
}

// Get returns key's value, or a NotFound error if the key was never put,
// was deleted, or was shadowed by a tombstone in a newer segment.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if err := record.Validate(key, nil); err != nil {
		return nil, errs.Wrap(err, errs.CodeInvalidArgument, "lsmdb: get")
	}

	e.memMu.Lock()
	v, ok := e.mem.Get(key)
	e.memMu.Unlock()
	if ok {
		if (memtable.Entry{Key: key, Value: v}).IsTombstone() {
			return nil, errs.ErrNotFound
		}
		return v, nil
	}

	e.chain.Lock()
	defer e.chain.Unlock()

	for _, node := range e.chain.NodesLocked() {
		if !node.Filter.MayContain(key) {
			continue
		}

		r, err := segment.Open(segment.PathFor(e.dir, node.ID))
		if err != nil {
			return nil, err
		}
		rec, found, err := segment.Lookup(r, node.Index, node.Filter, key)
		closeErr := r.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, errs.Wrap(closeErr, errs.CodeIO, "lsmdb: close segment")
		}
		if found {
			if rec.IsTombstone() {
				return nil, errs.ErrNotFound
			}
			return rec.Value, nil
		}
	}

	return nil, errs.ErrNotFound
}

// flushLocked seals the memtable into a new segment and installs it at
// the chain head. The caller must hold memMu.
func (e *Engine) flushLocked() error {
	e.chain.Lock()
	defer e.chain.Unlock()

	id := int(atomic.LoadInt64(&e.nextID))

	built, err := segment.Build(segment.PathFor(e.dir, id), recordsOf(e.mem.All()), segment.BuildParams{
		BlockSize:    e.opts.BlockSize,
		Compress:     e.opts.BlockCompression,
		FilterSize:   e.opts.FilterSize,
		FilterHashes: e.opts.FilterHashes,
	})
	if err != nil {
		return err
	}

	e.chain.InstallHeadLocked(chain.Node{ID: id, Index: built.Index, Filter: built.Filter})

	if err := e.wal.Reset(); err != nil {
		return err
	}

	atomic.StoreInt64(&e.nextID, int64(id+1))
	e.mem = memtable.New()

	e.log.Infow("flushed memtable", "segment_id", id, "records", built.Count)
	return nil
}

// Flush forces an out-of-band flush of the current memtable, even if it
// has not yet crossed the configured threshold. A no-op on an empty
// memtable.
func (e *Engine) Flush() error {
	e.memMu.Lock()
	defer e.memMu.Unlock()
	if e.mem.Len() == 0 {
		return nil
	}
	return e.flushLocked()
}

// Close stops the background compactor and closes the write-ahead log.
// Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.compactor.Stop()
		e.memMu.Lock()
		defer e.memMu.Unlock()
		e.closeErr = e.wal.Close()
	})
	return e.closeErr
}
