package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	o := NewDefaultOptions()

	if o.FlushSize != DefaultFlushSize {
		t.Fatalf("expected default flush size, got %d", o.FlushSize)
	}
	if o.FilterHashes != 3 {
		t.Fatalf("expected 3 default filter hashes, got %d", o.FilterHashes)
	}
}

func TestApplyOverrides(t *testing.T) {
	o := Apply(
		WithBlockSize(64),
		WithBlockCompression(false),
		WithFilterSize(101),
		WithCompactionInterval(5*time.Millisecond),
	)

	if o.BlockSize != 64 {
		t.Fatalf("expected block size 64, got %d", o.BlockSize)
	}
	if o.BlockCompression {
		t.Fatal("expected compression disabled")
	}
	if o.FilterSize != 101 {
		t.Fatalf("expected filter size 101, got %d", o.FilterSize)
	}
	if o.CompactionInterval != 5*time.Millisecond {
		t.Fatalf("expected 5ms interval, got %v", o.CompactionInterval)
	}
}

func TestOutOfRangeOptionsAreNoOps(t *testing.T) {
	o := Apply(
		WithFlushSize(-1),
		WithBlockSize(0),
		WithFilterSize(0),
		WithFilterHashes(0),
		WithCompactionInterval(-time.Second),
	)

	if o.FlushSize != DefaultFlushSize {
		t.Fatalf("expected negative flush size to be ignored, got %d", o.FlushSize)
	}
	if o.BlockSize != DefaultBlockSize {
		t.Fatalf("expected zero block size to be ignored, got %d", o.BlockSize)
	}
	if o.FilterHashes != DefaultFilterHashes {
		t.Fatalf("expected zero filter hashes to be ignored, got %d", o.FilterHashes)
	}
}
