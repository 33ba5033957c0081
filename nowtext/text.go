// Package nowtext implements the Text dictionary of spec §4.T: a
// persistent bidirectional string<->uint64 mapping with a bounded LRU
// over both directions.
//
// Key derivation reuses the teacher package's three pluggable hash
// algorithms verbatim (hash.go: xxHash3 default, FNV1a, Blake2b);
// persistence is an append-only, fsynced entry log (persist.go).
package nowtext

import (
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/toschoo/nowdb-go/nowerr"
)

// Algorithm selects the hash used to derive a string's dictionary key.
type Algorithm int

const (
	AlgXXHash3 Algorithm = iota + 1
	AlgFNV1a
	AlgBlake2b
)

// Unknown is the sentinel string returned for a surrogate key with no
// dictionary entry (spec §4.T "Unknown surrogate keys ... map to the
// sentinel UNKNOWN").
const Unknown = "UNKNOWN"

// Dict is the persistent string<->key dictionary for one Scope.
type Dict struct {
	dir string
	alg Algorithm

	mu      sync.RWMutex
	byKey   map[uint64]string
	byText  map[string]uint64
	keyLRU  *lru.Cache[uint64, string]
	textLRU *lru.Cache[string, uint64]
}

// Open loads (or creates) the text dictionary rooted at dir, with an
// LRU of cacheSize entries per direction.
func Open(dir string, alg Algorithm, cacheSize int) (*Dict, error) {
	if alg == 0 {
		alg = AlgXXHash3
	}
	if cacheSize <= 0 {
		cacheSize = 50_000
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nowerr.Wrap("nowtext.Open", dir, err)
	}

	keyLRU, _ := lru.New[uint64, string](cacheSize)
	textLRU, _ := lru.New[string, uint64](cacheSize)

	d := &Dict{
		dir:     dir,
		alg:     alg,
		byKey:   make(map[uint64]string),
		byText:  make(map[string]uint64),
		keyLRU:  keyLRU,
		textLRU: textLRU,
	}

	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// Insert returns the key for s, creating and persisting a new mapping
// if s has never been seen. Insert is idempotent: repeated calls with
// the same string return the same key (spec §8 property 8).
func (d *Dict) Insert(s string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if k, ok := d.byText[s]; ok {
		d.textLRU.Add(s, k)
		d.keyLRU.Add(k, s)
		return k, nil
	}

	k := hash(s, d.alg)
	for {
		if existing, collides := d.byKey[k]; collides && existing != s {
			k++ // linear probe on the rare hash collision
			continue
		}
		break
	}

	d.byKey[k] = s
	d.byText[s] = k
	d.keyLRU.Add(k, s)
	d.textLRU.Add(s, k)

	if err := d.appendEntry(k, s); err != nil {
		return 0, err
	}
	return k, nil
}

// GetKey looks up an existing string's key without creating one.
func (d *Dict) GetKey(s string) (uint64, error) {
	d.mu.RLock()
	if k, ok := d.textLRU.Get(s); ok {
		d.mu.RUnlock()
		return k, nil
	}
	k, ok := d.byText[s]
	d.mu.RUnlock()
	if !ok {
		return 0, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	d.mu.Lock()
	d.textLRU.Add(s, k)
	d.mu.Unlock()
	return k, nil
}

// GetText resolves a surrogate key to its string, or Unknown if the
// key has no dictionary entry.
func (d *Dict) GetText(key uint64) string {
	d.mu.RLock()
	if s, ok := d.keyLRU.Get(key); ok {
		d.mu.RUnlock()
		return s
	}
	s, ok := d.byKey[key]
	d.mu.RUnlock()
	if !ok {
		return Unknown
	}
	d.mu.Lock()
	d.keyLRU.Add(key, s)
	d.mu.Unlock()
	return s
}
