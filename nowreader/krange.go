package nowreader

import (
	"io"

	"github.com/toschoo/nowdb-go/nowindex"
)

// Krange yields keys only, skipping every page load. A consumer that
// only needs the indexed fields (an order-by-key projection, a
// covering-index scan) reconstructs a pseudo-record by scattering the
// key bytes back into their declared record offsets via the index's
// KeySpec, never touching the underlying pages at all.
type Krange struct {
	spec     nowindex.KeySpec
	recSize  int
	it       *nowindex.Iterator
	from, to []byte
	dir      nowindex.Dir
	tree     *nowindex.Tree
	stub     []byte
}

// NewKrange opens a key-only range iterator over [from,to]. recSize is
// the full record size the stub is scattered into; fields outside the
// key are left zeroed.
func NewKrange(tree *nowindex.Tree, spec nowindex.KeySpec, recSize int, from, to []byte, dir nowindex.Dir) *Krange {
	return &Krange{tree: tree, spec: spec, recSize: recSize, from: from, to: to, dir: dir}
}

func (r *Krange) SetPeriod(from, to int64) {}

func (r *Krange) Open() error {
	r.it = r.tree.Range(r.from, r.to, r.dir)
	return nil
}

func (r *Krange) Move() error {
	if !r.it.Next() {
		return io.EOF
	}
	key := r.it.Key()
	fields := r.spec.Decode(key)
	stub := make([]byte, r.recSize)
	for i, off := range r.spec.Offsets {
		copy(stub[off:off+r.spec.Widths[i]], fields[i])
	}
	r.stub = stub
	return nil
}

func (r *Krange) Page() []byte { return r.stub }
func (r *Krange) Key() []byte  { return r.it.Key() }

func (r *Krange) Rewind() error {
	r.it.Reset()
	r.stub = nil
	return nil
}

func (r *Krange) Close() error { return nil }
