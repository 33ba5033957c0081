package nowreader

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/toschoo/nowdb-go/nowfile"
)

var (
	pageCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nowdb_reader_page_cache_hits_total",
		Help: "Page cache hits across all readers.",
	})
	pageCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nowdb_reader_page_cache_misses_total",
		Help: "Page cache misses (pages loaded from disk) across all readers.",
	})
)

func init() {
	prometheus.MustRegister(pageCacheHits)
	prometheus.MustRegister(pageCacheMisses)
}

// FileSet resolves a PageID's file id to the open *nowfile.File it
// names, so a random-access reader never has to carry its own copy
// of the Store's file list.
type FileSet map[uint32]*nowfile.File

// PageCache loads pages by PageID through an LRU keyed by PageID, so
// repeat visits to the same page (a common pattern when several keys
// in a Search iterator land on one page) skip re-decompression —
// spec §4.R "Search ... loads the referenced page through a page LRU
// keyed by page id to avoid re-decompressing".
type PageCache struct {
	files FileSet
	cache *lru.Cache[PageID, []byte]
}

// NewPageCache builds a page cache of the given capacity over files.
func NewPageCache(files FileSet, capacity int) *PageCache {
	if capacity <= 0 {
		capacity = 4096
	}
	c, _ := lru.New[PageID, []byte](capacity)
	return &PageCache{files: files, cache: c}
}

// Load returns the decoded page for id, from cache or disk.
func (pc *PageCache) Load(id PageID) ([]byte, error) {
	if page, ok := pc.cache.Get(id); ok {
		pageCacheHits.Inc()
		return page, nil
	}
	pageCacheMisses.Inc()
	f, ok := pc.files[id.FileID()]
	if !ok {
		return nil, nowerrNoSuchFile(id.FileID())
	}
	page, _, _, _, err := nowfile.ReadBlockAt(f, id.Offset())
	if err != nil {
		return nil, err
	}
	pc.cache.Add(id, page)
	return page, nil
}
