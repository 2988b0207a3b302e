// Package rangetree keeps a set of half-open byte ranges and answers overlap
// queries in O(log n), which is how the central-directory parser rejects
// archives whose entries share compressed bytes.
package rangetree

import "github.com/google/btree"

type interval struct {
	start, end int64
}

// Tree is a set of disjoint half-open intervals [start, end).
//
// Tree is not safe for concurrent use.
type Tree struct {
	tr *btree.BTreeG[interval]
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{tr: btree.NewG(2, func(a, b interval) bool { return a.start < b.start })}
}

// Insert records [offset, offset+length). Zero-length ranges are no-ops.
//
// Insert does not check for overlap; call Overlap first to keep the set
// disjoint.
func (t *Tree) Insert(offset, length int64) {
	if length <= 0 {
		return
	}

	t.tr.ReplaceOrInsert(interval{start: offset, end: offset + length})
}

// Overlap reports whether [offset, offset+length) intersects any recorded
// range. Zero-length ranges never overlap.
func (t *Tree) Overlap(offset, length int64) bool {
	if length <= 0 {
		return false
	}

	// because the recorded intervals are disjoint, the only candidate is the
	// one with the greatest start below offset+length.
	found := false
	t.tr.DescendLessOrEqual(interval{start: offset + length - 1}, func(it interval) bool {
		found = it.end > offset
		return false
	})

	return found
}

// Len returns the number of recorded ranges.
func (t *Tree) Len() int {
	return t.tr.Len()
}
