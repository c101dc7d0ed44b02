// Package record implements the on-wire framing of a single key-value pair:
// the unit that a block's payload is a concatenation of.
//
//	offset 0: u16 key_len
//	offset 2: key_len bytes key
//	offset 2+key_len: u32 val_len
//	offset 2+key_len+4: val_len bytes value
//
// A zero-length value is the tombstone sentinel for a logical delete.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MaxKeyLen is the largest key length the framing can express.
	MaxKeyLen = 1<<16 - 1

	// MaxValueLen is the largest value length the framing can express.
	MaxValueLen = 1<<32 - 1

	// HeaderLen is the number of bytes of fixed-width framing around a
	// record's key and value (2-byte key length + 4-byte value length).
	HeaderLen = 2 + 4
)

// ErrTruncated means data ended before a complete record could be read.
var ErrTruncated = errors.New("record: truncated payload")

// Record is a decoded key-value pair.
type Record struct {
	Key   []byte
	Value []byte
}

// IsTombstone reports whether r represents a logical delete.
func (r Record) IsTombstone() bool {
	return len(r.Value) == 0
}

// EncodedLen returns the number of bytes r occupies on the wire.
func (r Record) EncodedLen() int {
	return HeaderLen + len(r.Key) + len(r.Value)
}

// Validate checks a prospective key/value pair against the framing's size
// bounds.
func Validate(key, value []byte) error {
	if len(key) > MaxKeyLen {
		return fmt.Errorf("record: key length %d exceeds maximum %d", len(key), MaxKeyLen)
	}
	if uint64(len(value)) > MaxValueLen {
		return fmt.Errorf("record: value length %d exceeds maximum %d", len(value), MaxValueLen)
	}
	return nil
}

// AppendTo appends the wire encoding of r to dst, returning the grown slice.
func AppendTo(dst []byte, r Record) []byte {
	var lenBuf [4]byte

	binary.LittleEndian.PutUint16(lenBuf[:2], uint16(len(r.Key)))
	dst = append(dst, lenBuf[:2]...)
	dst = append(dst, r.Key...)

	binary.LittleEndian.PutUint32(lenBuf[:4], uint32(len(r.Value)))
	dst = append(dst, lenBuf[:4]...)
	dst = append(dst, r.Value...)

	return dst
}

// Decode reads one record from the front of data, returning it along with
// the number of bytes consumed. The returned Key/Value alias data; callers
// that retain them past data's lifetime must copy.
func Decode(data []byte) (Record, int, error) {
	if len(data) < 2 {
		return Record{}, 0, ErrTruncated
	}

	keyLen := int(binary.LittleEndian.Uint16(data[:2]))
	offset := 2

	if len(data) < offset+keyLen+4 {
		return Record{}, 0, ErrTruncated
	}

	key := data[offset : offset+keyLen]
	offset += keyLen

	valLen := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4

	if len(data) < offset+valLen {
		return Record{}, 0, ErrTruncated
	}

	value := data[offset : offset+valLen]
	offset += valLen

	return Record{Key: key, Value: value}, offset, nil
}
