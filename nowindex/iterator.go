package nowindex

import "bytes"

// Dir selects range iteration direction.
type Dir int

const (
	Asc Dir = iota
	Desc
)

// Iterator walks a contiguous run of (key, value) leaf entries.
type Iterator struct {
	entries []entryRef
	pos     int
}

type entryRef struct {
	key   []byte
	value LeafValue
}

// Next advances the iterator, returning false once exhausted.
func (it *Iterator) Next() bool {
	it.pos++
	return it.pos < len(it.entries)
}

// Reset rewinds the iterator back to its start.
func (it *Iterator) Reset() {
	it.pos = -1
}

// Key returns the current entry's key. Valid only after a Next that
// returned true.
func (it *Iterator) Key() []byte { return it.entries[it.pos].key }

// Value returns the current entry's leaf value.
func (it *Iterator) Value() LeafValue { return it.entries[it.pos].value }

// GetIter opens a point-match iterator over every leaf entry with the
// given key — ordinarily zero or one, since Insert/InsertBit collapse
// repeats into a single entry, but callers should still loop via Next
// rather than assume cardinality.
func (t *Tree) GetIter(key []byte) *Iterator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	leaf, idx := t.findLeaf(key)
	it := &Iterator{pos: -1}
	if idx < len(leaf.keys) && bytes.Equal(leaf.keys[idx], key) {
		it.entries = append(it.entries, entryRef{leaf.keys[idx], leaf.values[idx]})
	}
	return it
}

// Range opens an iterator over [from,to]. Direction defaults to
// ascending; per spec §4.I it is descending whenever from sorts after
// to (a caller passing reversed bounds intends a descending scan).
func (t *Tree) Range(from, to []byte, dir Dir) *Iterator {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lo, hi := from, to
	if bytes.Compare(from, to) > 0 {
		lo, hi = to, from
		dir = Desc
	}

	leaf, idx := t.findLeaf(lo)
	var entries []entryRef
	for leaf != nil {
		for ; idx < len(leaf.keys); idx++ {
			if bytes.Compare(leaf.keys[idx], hi) > 0 {
				leaf = nil
				break
			}
			entries = append(entries, entryRef{leaf.keys[idx], leaf.values[idx]})
		}
		if leaf != nil {
			leaf = leaf.next
			idx = 0
		}
	}

	if dir == Desc {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	return &Iterator{entries: entries, pos: -1}
}
