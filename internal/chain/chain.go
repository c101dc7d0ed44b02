// Package chain models the index chain: the ordered list of sealed
// segments an engine reads through, newest first, and the compactor
// periodically shortens. Each node bundles a segment id with the sparse
// index and approximate-membership filter built for it.
//
// Rather than a singly linked list of pointer-owned nodes mutated in
// place by the compactor, the chain is modeled as a slice with an atomic
// SwapByIDLocked. A node is never mutated once installed; compaction always
// installs a fresh replacement and discards the old one.
package chain

import (
	"sync"

	"github.com/Priyanshu23/lsmdb/internal/bloomfilter"
	"github.com/Priyanshu23/lsmdb/internal/sparseindex"
)

// Node is one segment's place in the chain together with the read-path
// structures built for it.
type Node struct {
	ID     int
	Index  *sparseindex.Index
	Filter *bloomfilter.Filter
}

// Chain is the mutex-guarded, newest-first list of live index chain nodes.
// The same mutex doubles as the engine's chain mutex: callers that need to
// hold it across a larger critical section (a flush, a compactor swap)
// use Lock/Unlock directly instead of the single-operation helpers.
type Chain struct {
	mu    sync.Mutex
	nodes []Node
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{}
}

// Lock acquires the chain mutex for a multi-step critical section (a
// flush's block-write-then-install, or a compactor's delete-rename-swap).
func (c *Chain) Lock() {
	c.mu.Lock()
}

// Unlock releases the chain mutex.
func (c *Chain) Unlock() {
	c.mu.Unlock()
}

// InstallHeadLocked pushes a newly flushed segment's node to the front of
// the chain. The caller must hold the chain mutex (via Lock).
func (c *Chain) InstallHeadLocked(n Node) {
	c.nodes = append([]Node{n}, c.nodes...)
}

// NodesLocked returns every live node, newest first. The caller must hold the
// chain mutex for the duration it intends to use the returned slice's
// pointers, since a concurrent SwapByIDLocked may otherwise race a reader
// that fails to take the lock.
func (c *Chain) NodesLocked() []Node {
	return c.nodes
}

// IDs returns every live segment id, newest first.
func (c *Chain) IDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, len(c.nodes))
	for i, n := range c.nodes {
		ids[i] = n.ID
	}
	return ids
}

// Len reports how many segments are currently live.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// Oldest returns the two oldest live segment ids, older first, and true,
// or (0, 0, false) if fewer than two segments are live.
func (c *Chain) Oldest() (olderID, newerID int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.nodes)
	if n < 2 {
		return 0, 0, false
	}
	return c.nodes[n-1].ID, c.nodes[n-2].ID, true
}

// IsBottomOfChain reports whether the given pair of ids is the entire
// chain, i.e. there is no older segment beneath them. A compactor merging
// the bottom of the chain may drop tombstones outright, since there is no
// older version of the deleted key left for the tombstone to shadow.
func (c *Chain) IsBottomOfChain(olderID, newerID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes) == 2 &&
		((c.nodes[0].ID == newerID && c.nodes[1].ID == olderID) ||
			(c.nodes[0].ID == olderID && c.nodes[1].ID == newerID))
}

// SwapByIDLocked atomically replaces the two nodes named by oldIDs with a
// single replacement node, preserving the chain's relative ordering: the
// merged node takes the position of whichever of the two inputs was
// newer. The caller must hold the chain mutex (via Lock).
func (c *Chain) SwapByIDLocked(oldIDs [2]int, replacement Node) {
	out := make([]Node, 0, len(c.nodes)-1)
	replaced := false
	for _, n := range c.nodes {
		if n.ID == oldIDs[0] || n.ID == oldIDs[1] {
			if !replaced {
				out = append(out, replacement)
				replaced = true
			}
			continue
		}
		out = append(out, n)
	}
	c.nodes = out
}

// Load replaces the chain's contents wholesale, used when rebuilding the
// chain from the segment files found on disk at startup. nodes must
// already be newest-first.
func (c *Chain) Load(nodes []Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = nodes
}
