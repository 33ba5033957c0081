package nowscope

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// vertexKey identifies a vertex by its (role, primary-key bytes) pair,
// the cache key registerVertex dedups on.
type vertexKey struct {
	roleID uint32
	pk     string // raw PK bytes, used as a map key
}

// evache and ivache are the per-role caches a Scope keeps, guarded by
// the Scope lock: RegisterVertex uses evache ("edge vertex cache") to
// detect duplicate primary keys without hitting the on-disk index on
// every insert, and FieldLayout uses ivache ("index/info vache") to
// skip re-counting a role's declared properties in the Model.
type vertexCaches struct {
	evache *lru.Cache[vertexKey, uint64] // PK -> vid
	ivache *lru.Cache[uint32, fieldLayout]
}

// fieldLayout is the cached per-role shape ivache holds: nothing the
// Model doesn't already compute, just avoided on the hot insert path.
type fieldLayout struct {
	size int
}

const defaultCacheSize = 4096

func newVertexCaches() *vertexCaches {
	ev, _ := lru.New[vertexKey, uint64](defaultCacheSize)
	iv, _ := lru.New[uint32, fieldLayout](defaultCacheSize)
	return &vertexCaches{evache: ev, ivache: iv}
}
