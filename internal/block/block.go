// Package block implements the unit of on-disk I/O within a segment: a
// contiguous, optionally compressed batch of records with a fixed-size
// header, framed as:
//
//	offset 0:  u8  flags   (bit 7 = compressed, other bits reserved 0)
//	offset 1:  u32 crc32   (checksum of the payload as stored, i.e. post-compression)
//	offset 5:  u64 size    (payload size in bytes)
//	offset 13: payload     (size bytes; optionally zlib-compressed)
//
// Within a block, records are added in strictly ascending key order by the
// caller (the memtable's in-order traversal, or the compactor's merge);
// block itself does not enforce ordering.
package block

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"

	"github.com/klauspost/compress/zlib"

	"github.com/Priyanshu23/lsmdb/errs"
	"github.com/Priyanshu23/lsmdb/internal/record"
)

const (
	// FlagCompressed marks a block's payload as zlib-compressed.
	FlagCompressed byte = 1 << 7

	// HeaderSize is the fixed byte width of a block's header.
	HeaderSize = 1 + 4 + 8

	// maxPayloadSize is the hard upper bound on a block's cumulative
	// uncompressed payload; Add fails with CodeSizeOverflow beyond it.
	maxPayloadSize = math.MaxUint64
)

// Block accumulates records for a single flush or compaction pass.
type Block struct {
	anchor  []byte
	size    uint64
	records []record.Record
}

// New returns an empty block.
func New() *Block {
	return &Block{}
}

// Len returns the number of records added so far.
func (b *Block) Len() int {
	return len(b.records)
}

// Size returns the cumulative uncompressed payload size of the records
// added so far.
func (b *Block) Size() uint64 {
	return b.size
}

// Anchor returns the block's first-added key, reported to the sparse index
// as the block's first key. Anchor returns nil for an empty block.
func (b *Block) Anchor() []byte {
	return b.anchor
}

// Add appends a record, tracking cumulative payload size and the block's
// anchor key. Add fails with a CodeSizeOverflow error if the cumulative
// size would wrap past the framing's hard bound.
func (b *Block) Add(key, value []byte) error {
	if err := record.Validate(key, value); err != nil {
		return errs.Wrap(err, errs.CodeInvalidArgument, "block: invalid record")
	}

	rec := record.Record{
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	}
	recLen := uint64(rec.EncodedLen())

	if b.size+recLen < b.size || b.size+recLen > maxPayloadSize {
		return errs.New(errs.CodeSizeOverflow, "block: maximum size exceeded")
	}

	b.records = append(b.records, rec)
	b.size += recLen
	if b.anchor == nil {
		b.anchor = rec.Key
	}

	return nil
}

// Dump serializes the block: flags, CRC32 of the stored (post-compression)
// payload, payload length, then the payload itself, optionally zlib
// compressed at the fastest level.
func (b *Block) Dump(compress bool) ([]byte, error) {
	var payload []byte
	for _, r := range b.records {
		payload = record.AppendTo(payload, r)
	}

	flags := byte(0)
	if compress {
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestSpeed)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, "block: create zlib writer")
		}
		if _, err := zw.Write(payload); err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, "block: compress payload")
		}
		if err := zw.Close(); err != nil {
			return nil, errs.Wrap(err, errs.CodeIO, "block: close zlib writer")
		}
		payload = buf.Bytes()
		flags |= FlagCompressed
	}

	crc := crc32.ChecksumIEEE(payload)

	out := make([]byte, 0, HeaderSize+len(payload))
	out = append(out, flags)

	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc)
	out = append(out, crcBuf[:]...)

	var sizeBuf [8]byte
	binary.LittleEndian.PutUint64(sizeBuf[:], uint64(len(payload)))
	out = append(out, sizeBuf[:]...)

	out = append(out, payload...)

	return out, nil
}

// PeekLen reads a block's header from the front of data and returns the
// block's total on-wire length (header plus payload) without decoding any
// records, so a caller walking a concatenated stream of blocks (the WAL)
// can find the next block's boundary cheaply. PeekLen reports false if
// data is too short to contain a full header.
func PeekLen(data []byte) (int, bool) {
	if len(data) < HeaderSize {
		return 0, false
	}
	size := binary.LittleEndian.Uint64(data[5:13])
	return HeaderSize + int(size), true
}

// IterFromBinary parses a block's header, verifies its CRC (when strict),
// decompresses if flagged, and calls yield once per decoded record in
// stored order. Decoding stops early, without error, if yield returns
// false. IterFromBinary fails with CodeCorruption on a CRC mismatch (when
// strict) or when a record's declared length would run past the payload's
// end.
func IterFromBinary(data []byte, strict bool, yield func(record.Record) bool) error {
	if len(data) < HeaderSize {
		return errs.New(errs.CodeCorruption, "block: truncated header")
	}

	flags := data[0]
	storedCRC := binary.LittleEndian.Uint32(data[1:5])
	size := binary.LittleEndian.Uint64(data[5:13])

	if uint64(len(data)-HeaderSize) < size {
		return errs.New(errs.CodeCorruption, "block: truncated payload")
	}
	payload := data[HeaderSize : HeaderSize+int(size)]

	if strict && crc32.ChecksumIEEE(payload) != storedCRC {
		return errs.New(errs.CodeCorruption, "block: crc mismatch")
	}

	if flags&FlagCompressed != 0 {
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return errs.Wrap(err, errs.CodeCorruption, "block: open zlib reader")
		}
		decompressed, err := io.ReadAll(zr)
		if err != nil {
			return errs.Wrap(err, errs.CodeCorruption, "block: decompress payload")
		}
		payload = decompressed
	}

	offset := 0
	for offset < len(payload) {
		rec, n, err := record.Decode(payload[offset:])
		if err != nil {
			return errs.Wrap(err, errs.CodeCorruption, "block: malformed record")
		}

		out := record.Record{
			Key:   append([]byte(nil), rec.Key...),
			Value: append([]byte(nil), rec.Value...),
		}
		if !yield(out) {
			return nil
		}
		offset += n
	}

	return nil
}
