// Package config defines the engine's tunables as a functional-options
// struct: a functional Option and an Apply that folds a slice of them onto
// a set of defaults.
package config

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultFlushSize is RBTREE_FLUSH_SIZE: the in-memory map is flushed
	// to a new segment once it would grow past this many bytes.
	DefaultFlushSize int64 = 3 * 1024 * 1024

	// DefaultBlockSize is BLOCK_SIZE: the soft cap on a block's
	// uncompressed payload before a new block is started.
	DefaultBlockSize int = 10 * 1024

	// DefaultBlockCompression is BLOCK_COMPRESSION.
	DefaultBlockCompression = true

	// DefaultFilterSize is BLOOM_FILTER_SIZE: bit count of the per-segment
	// approximate-membership filter.
	DefaultFilterSize uint = 9679

	// DefaultFilterHashes is BLOOM_FILTER_HASHES.
	DefaultFilterHashes uint = 3

	// DefaultCompactionInterval is COMPACTION_INTERVAL.
	DefaultCompactionInterval = time.Second
)

// Options holds every tunable the engine accepts.
type Options struct {
	FlushSize          int64
	BlockSize          int
	BlockCompression   bool
	FilterSize         uint
	FilterHashes       uint
	CompactionInterval time.Duration
	Logger             *zap.SugaredLogger
}

// NewDefaultOptions returns the engine's out-of-the-box configuration.
func NewDefaultOptions() Options {
	return Options{
		FlushSize:          DefaultFlushSize,
		BlockSize:          DefaultBlockSize,
		BlockCompression:   DefaultBlockCompression,
		FilterSize:         DefaultFilterSize,
		FilterHashes:       DefaultFilterHashes,
		CompactionInterval: DefaultCompactionInterval,
	}
}

// Option mutates an Options value. Each With* constructor below validates
// its argument and is a no-op on an out-of-range value rather than
// panicking or returning an error, so a bad option never prevents Open
// from using sane defaults for everything else.
type Option func(*Options)

// WithFlushSize overrides the in-memory flush threshold.
func WithFlushSize(n int64) Option {
	return func(o *Options) {
		if n > 0 {
			o.FlushSize = n
		}
	}
}

// WithBlockSize overrides BLOCK_SIZE.
func WithBlockSize(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BlockSize = n
		}
	}
}

// WithBlockCompression overrides BLOCK_COMPRESSION.
func WithBlockCompression(enabled bool) Option {
	return func(o *Options) {
		o.BlockCompression = enabled
	}
}

// WithFilterSize overrides BLOOM_FILTER_SIZE.
func WithFilterSize(m uint) Option {
	return func(o *Options) {
		if m > 0 {
			o.FilterSize = m
		}
	}
}

// WithFilterHashes overrides BLOOM_FILTER_HASHES.
func WithFilterHashes(k uint) Option {
	return func(o *Options) {
		if k > 0 {
			o.FilterHashes = k
		}
	}
}

// WithCompactionInterval overrides COMPACTION_INTERVAL.
func WithCompactionInterval(interval time.Duration) Option {
	return func(o *Options) {
		if interval > 0 {
			o.CompactionInterval = interval
		}
	}
}

// WithLogger injects a structured logger. Without this option the engine
// logs nowhere (zap.NewNop), since a library must never force output on an
// embedder.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Apply starts from the defaults and applies opts in order.
func Apply(opts ...Option) Options {
	o := NewDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
