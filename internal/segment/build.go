package segment

import (
	"iter"

	"github.com/Priyanshu23/lsmdb/internal/block"
	"github.com/Priyanshu23/lsmdb/internal/bloomfilter"
	"github.com/Priyanshu23/lsmdb/internal/record"
	"github.com/Priyanshu23/lsmdb/internal/sparseindex"
)

// BuildParams configures the block-building policy shared by a memtable
// flush and a compaction pass: start a new block once the current one's
// uncompressed size exceeds blockSize, optionally zlib-compress each
// block, and track every written key in an M-bit, K-hash filter.
type BuildParams struct {
	BlockSize    int
	Compress     bool
	FilterSize   uint
	FilterHashes uint
}

// Built is the read-path state produced for a newly written segment.
type Built struct {
	Index  *sparseindex.Index
	Filter *bloomfilter.Filter
	Count  int
}

// Build writes entries (which must already be in strictly ascending key
// order with no duplicate keys) to path as a sequence of blocks, and
// returns the sparse index and filter built alongside. The trailing
// partial block, if any, is always emitted.
func Build(path string, entries iter.Seq[record.Record], p BuildParams) (*Built, error) {
	w, err := Create(path)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	idx := sparseindex.New()
	filter := bloomfilter.New(p.FilterSize, p.FilterHashes)

	cur := block.New()
	count := 0

	flushBlock := func() error {
		if cur.Len() == 0 {
			return nil
		}
		data, err := cur.Dump(p.Compress)
		if err != nil {
			return err
		}
		offset, length, err := w.WriteBlock(data)
		if err != nil {
			return err
		}
		idx.Add(cur.Anchor(), sparseindex.Range{Offset: offset, Length: length})
		cur = block.New()
		return nil
	}

	for rec := range entries {
		if err := cur.Add(rec.Key, rec.Value); err != nil {
			return nil, err
		}
		filter.Add(rec.Key)
		count++
		if cur.Size() > uint64(p.BlockSize) {
			if err := flushBlock(); err != nil {
				return nil, err
			}
		}
	}
	if err := flushBlock(); err != nil {
		return nil, err
	}

	if err := w.Sync(); err != nil {
		return nil, err
	}

	idx.Sort()
	return &Built{Index: idx, Filter: filter, Count: count}, nil
}

// Lookup consults a segment's filter and sparse index for key, reading and
// scanning at most one block from disk. found is false if the filter or
// the sparse index rules the key out, or if the scanned block does not
// hold it; when found is true, rec is the decoded record.
func Lookup(r *Reader, idx *sparseindex.Index, filter *bloomfilter.Filter, key []byte) (rec record.Record, found bool, err error) {
	if !filter.MayContain(key) {
		return record.Record{}, false, nil
	}

	rng, ok := idx.Find(key)
	if !ok {
		return record.Record{}, false, nil
	}

	data, err := r.ReadRange(rng.Offset, rng.Length)
	if err != nil {
		return record.Record{}, false, err
	}

	err = block.IterFromBinary(data, true, func(candidate record.Record) bool {
		if string(candidate.Key) == string(key) {
			rec = candidate
			found = true
		}
		return !found
	})
	if err != nil {
		return record.Record{}, false, err
	}
	return rec, found, nil
}

// Reindex rebuilds the sparse index and filter for an already-written
// segment by walking its blocks from the start, the recovery-time
// counterpart to Build's accumulate-while-writing. It reports complete as
// false, with a nil error, if the file ends mid-header or mid-payload
// (a tail left by a crash mid-write); it returns a non-nil error if a
// fully-framed block fails its CRC check. Either condition leaves the
// returned Built only covering the blocks confirmed intact before the
// problem was found.
func Reindex(r *Reader, p BuildParams) (built *Built, complete bool, err error) {
	idx := sparseindex.New()
	filter := bloomfilter.New(p.FilterSize, p.FilterHashes)
	count := 0

	var offset int64
	for offset < r.Size() {
		if offset+int64(block.HeaderSize) > r.Size() {
			return &Built{Index: idx, Filter: filter, Count: count}, false, nil
		}
		header, err := r.ReadRange(offset, int64(block.HeaderSize))
		if err != nil {
			return &Built{Index: idx, Filter: filter, Count: count}, false, nil
		}
		total, ok := block.PeekLen(header)
		if !ok || offset+int64(total) > r.Size() {
			return &Built{Index: idx, Filter: filter, Count: count}, false, nil
		}

		data, err := r.ReadRange(offset, int64(total))
		if err != nil {
			return &Built{Index: idx, Filter: filter, Count: count}, false, nil
		}

		var anchor []byte
		iterErr := block.IterFromBinary(data, true, func(rec record.Record) bool {
			if anchor == nil {
				anchor = append([]byte(nil), rec.Key...)
			}
			filter.Add(rec.Key)
			count++
			return true
		})
		if iterErr != nil {
			return &Built{Index: idx, Filter: filter, Count: count}, false, iterErr
		}

		idx.Add(anchor, sparseindex.Range{Offset: offset, Length: int64(total)})
		offset += int64(total)
	}

	idx.Sort()
	return &Built{Index: idx, Filter: filter, Count: count}, true, nil
}

// Scan iterates every record stored across a segment's blocks, in
// ascending key order, used by the compactor's merge cursors. It stops
// early and returns an error at the first corrupt block, per this
// package's strict CRC verification.
func Scan(r *Reader, strict bool) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		var offset int64
		for offset < r.Size() {
			header, err := r.ReadRange(offset, int64(block.HeaderSize))
			if err != nil {
				yield(record.Record{}, err)
				return
			}
			total, ok := block.PeekLen(header)
			if !ok {
				return
			}
			data, err := r.ReadRange(offset, int64(total))
			if err != nil {
				yield(record.Record{}, err)
				return
			}

			cont := true
			iterErr := block.IterFromBinary(data, strict, func(rec record.Record) bool {
				cont = yield(rec, nil)
				return cont
			})
			if iterErr != nil {
				yield(record.Record{}, iterErr)
				return
			}
			if !cont {
				return
			}
			offset += int64(total)
		}
	}
}
