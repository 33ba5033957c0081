// Package nowreader implements the Reader component of spec §4.R:
// six concrete readers sharing one move/page/key/rewind iterator
// shape, plus the Vseq and Merge composites built on top of them.
//
// The common interface follows spec §9's "Iterator-shaped readers"
// design note directly. The sorted/pending split in Merge is grounded
// on folio's scan.go (binary search over a sorted section) paired
// with sparse/search.go's linear scan over an unsorted tail — NowDB's
// "range reader over sorted files + buffer reader over pending files"
// is the same two-tier shape applied to 8KiB record pages instead of
// JSON lines.
package nowreader

import "io"

// Reader is the common shape of every concrete reader kind: advance
// to the next page or key, read the current one, and reset to the
// start. Move returns io.EOF exactly once the reader is exhausted —
// never wrapped, per spec §7's EOF propagation policy.
type Reader interface {
	Open() error
	Move() error
	Page() []byte
	Key() []byte
	Rewind() error
	SetPeriod(from, to int64)
	Close() error
}

// EOF is the sentinel every reader returns from Move once exhausted.
var EOF = io.EOF
