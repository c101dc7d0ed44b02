// Package bloomfilter implements the per-segment approximate-membership
// filter: a fixed-size bitset addressed by CRC32(key||salt) mod M, repeated
// across k salted hashes. A negative test guarantees the key is absent from
// the segment; a positive test means only "maybe", and the caller must still
// check the segment's sparse index.
//
// The hash scheme is deliberately hand-rolled rather than delegated to a
// ready-made Bloom filter implementation: it needs to be reproducible from
// just (M, k) on every reopen, with no auxiliary seed state to persist
// alongside the segment.
package bloomfilter

import (
	"hash/crc32"

	"github.com/bits-and-blooms/bitset"
)

// Filter is a fixed-size, fixed-hash-count approximate-membership filter.
type Filter struct {
	bits   *bitset.BitSet
	m      uint
	k      uint
	filled uint
}

// New returns an empty filter backed by m bits and k salted hash rounds per
// key. New panics if m or k is zero; callers are expected to pass validated
// config.Options values.
func New(m, k uint) *Filter {
	if m == 0 || k == 0 {
		panic("bloomfilter: m and k must be positive")
	}
	return &Filter{bits: bitset.New(m), m: m, k: k}
}

// Add records key's membership.
func (f *Filter) Add(key []byte) {
	for _, idx := range f.indices(key) {
		if !f.bits.Test(idx) {
			f.filled++
		}
		f.bits.Set(idx)
	}
}

// MayContain reports whether key might be present. false is a definitive
// absence; true means the segment's sparse index must still be consulted.
func (f *Filter) MayContain(key []byte) bool {
	for _, idx := range f.indices(key) {
		if !f.bits.Test(idx) {
			return false
		}
	}
	return true
}

// Saturated reports whether every bit in the filter has been set, at which
// point it can no longer rule anything out and the caller should skip
// straight to the sparse index.
func (f *Filter) Saturated() bool {
	return f.filled >= f.m
}

func (f *Filter) indices(key []byte) []uint {
	out := make([]uint, f.k)
	buf := make([]byte, len(key)+1)
	copy(buf, key)
	for i := uint(0); i < f.k; i++ {
		buf[len(key)] = byte(i)
		h := crc32.ChecksumIEEE(buf)
		out[i] = uint(h) % f.m
	}
	return out
}
