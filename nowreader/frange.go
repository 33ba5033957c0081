package nowreader

import (
	"io"

	"github.com/toschoo/nowdb-go/nowindex"
)

// Frange (full range) iterates an index range and, for each key,
// yields every page its leaf value references. Producing at-page
// granularity.
type Frange struct {
	tree     *nowindex.Tree
	from, to []byte
	dir      nowindex.Dir
	cache    *PageCache

	it   *nowindex.Iterator
	page []byte
}

// NewFrange opens a range iterator over [from,to].
func NewFrange(tree *nowindex.Tree, from, to []byte, dir nowindex.Dir, cache *PageCache) *Frange {
	return &Frange{tree: tree, from: from, to: to, dir: dir, cache: cache}
}

func (r *Frange) SetPeriod(from, to int64) {} // pruning already encoded in the index range

func (r *Frange) Open() error {
	r.it = r.tree.Range(r.from, r.to, r.dir)
	return nil
}

func (r *Frange) Move() error {
	if !r.it.Next() {
		return io.EOF
	}
	page, err := r.cache.Load(PageID(r.it.Value().PageID))
	if err != nil {
		return err
	}
	r.page = page
	return nil
}

func (r *Frange) Page() []byte { return r.page }
func (r *Frange) Key() []byte  { return r.it.Key() }

func (r *Frange) Rewind() error {
	r.it.Reset()
	r.page = nil
	return nil
}

func (r *Frange) Close() error { return nil }
