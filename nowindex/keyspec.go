// Package nowindex implements the B+ tree Index of spec §4.I: a tree
// keyed by a packed tuple of record offsets, whose leaves carry either
// a page id or a 128-bit presence bitmap.
//
// Node layout and the leaf-chain range scan are grounded on the
// Pager/Page split shown in the pack's storage-engine B-tree example
// (other_examples/...btree-btree.go: Config.Order as fanout, a
// cache-backed Pager) and on the pager-driven range cursor in
// other_examples/...tinySQL__internal-storage-pager-pager.go; NowDB's
// packed-offset key format and dual leaf-value kind have no reusable
// library in the pack, so the tree itself is hand-rolled, grounded on
// those two files' node/iteration shape rather than a vendored
// algorithm.
package nowindex

import "encoding/binary"

// KeySpec describes how to build an index key from a raw record: the
// byte offset and width of each field that composes the key, in
// order. Readers use the same spec to decode a key back into a
// record-shaped stub (spec §4.I "Resource model").
type KeySpec struct {
	Offsets []int
	Widths  []int
}

// Size is the total byte length of a key built from this spec.
func (k KeySpec) Size() int {
	n := 0
	for _, w := range k.Widths {
		n += w
	}
	return n
}

// Build extracts and concatenates the key fields from rec.
func (k KeySpec) Build(rec []byte) []byte {
	key := make([]byte, 0, k.Size())
	for i, off := range k.Offsets {
		w := k.Widths[i]
		key = append(key, rec[off:off+w]...)
	}
	return key
}

// Decode splits a key back into its field values, each returned as
// the raw big-endian-comparable bytes it was built from.
func (k KeySpec) Decode(key []byte) [][]byte {
	fields := make([][]byte, len(k.Widths))
	off := 0
	for i, w := range k.Widths {
		fields[i] = key[off : off+w]
		off += w
	}
	return fields
}

// EncodeUint64Field appends a big-endian uint64 so keys sort the same
// way the numeric values do, regardless of host endianness.
func EncodeUint64Field(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// EncodeInt64Field appends an order-preserving encoding of a signed
// integer: flipping the sign bit turns two's-complement comparison
// order into the same order as unsigned big-endian byte comparison.
func EncodeInt64Field(v int64) []byte {
	return EncodeUint64Field(uint64(v) ^ (1 << 63))
}
