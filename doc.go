// Package lsmdb implements an embedded, single-node, ordered key-value
// storage engine organized as a log-structured merge tree: writes land in
// an in-memory memtable and a write-ahead log, the memtable is flushed to
// an immutable on-disk segment once it grows past a configurable
// threshold, reads consult the memtable then walk the segment chain
// newest-first, and a background compactor periodically merges the two
// oldest segments to reclaim space and collapse redundant versions.
//
// Only one writer may use an Engine at a time; concurrent readers and a
// single background compactor are supported internally.
package lsmdb
