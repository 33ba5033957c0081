package nowreader

import (
	"io"

	"github.com/toschoo/nowdb-go/nowindex"
)

// Search iterates a point-query's matches, loading each match's
// referenced page through a page cache.
type Search struct {
	it    *nowindex.Iterator
	cache *PageCache
	page  []byte
}

// NewSearch opens a point match over key.
func NewSearch(tree *nowindex.Tree, key []byte, cache *PageCache) *Search {
	return &Search{it: tree.GetIter(key), cache: cache}
}

func (r *Search) SetPeriod(from, to int64) {} // point queries carry no period

func (r *Search) Open() error { return nil }

func (r *Search) Move() error {
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

func (r *Search) Page() []byte { return r.page }
func (r *Search) Key() []byte  { return r.it.Key() }

func (r *Search) Rewind() error {
	r.it.Reset()
	r.page = nil
	return nil
}

func (r *Search) Close() error { return nil }
