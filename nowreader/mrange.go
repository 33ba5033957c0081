package nowreader

import (
	"io"

	"github.com/toschoo/nowdb-go/nowindex"
)

// Mrange is a Frange with a mask: each key's leaf value may carry a
// LeafBitmap naming which slots within the referenced page actually
// match (a non-unique secondary index), rather than the whole page.
// Consumers that care which records within a page matched call Mask
// after each Move; consumers that only want pages (a Reader caller
// that only asked for Page/Key) can ignore it.
type Mrange struct {
	tree     *nowindex.Tree
	from, to []byte
	dir      nowindex.Dir
	cache    *PageCache

	it   *nowindex.Iterator
	page []byte
}

// NewMrange opens a masked range iterator over [from,to].
func NewMrange(tree *nowindex.Tree, from, to []byte, dir nowindex.Dir, cache *PageCache) *Mrange {
	return &Mrange{tree: tree, from: from, to: to, dir: dir, cache: cache}
}

func (r *Mrange) SetPeriod(from, to int64) {}

func (r *Mrange) Open() error {
	r.it = r.tree.Range(r.from, r.to, r.dir)
	return nil
}

func (r *Mrange) Move() error {
	if !r.it.Next() {
		return io.EOF
	}
	v := r.it.Value()
	if v.Kind == nowindex.LeafPageID {
		page, err := r.cache.Load(PageID(v.PageID))
		if err != nil {
			return err
		}
		r.page = page
		return nil
	}
	page, err := r.cache.Load(PageID(v.PageID))
	if err != nil {
		return err
	}
	r.page = page
	return nil
}

func (r *Mrange) Page() []byte { return r.page }
func (r *Mrange) Key() []byte  { return r.it.Key() }

// Mask returns the set of record slots within the current page that
// actually matched the key, or nil if the current entry points at a
// whole page (a unique index, LeafPageID) rather than a bitmap.
func (r *Mrange) Mask() []int {
	v := r.it.Value()
	if v.Kind != nowindex.LeafBitmap {
		return nil
	}
	return v.Slots()
}

func (r *Mrange) Rewind() error {
	r.it.Reset()
	r.page = nil
	return nil
}

func (r *Mrange) Close() error { return nil }
