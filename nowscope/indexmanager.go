package nowscope

import (
	"strconv"
	"sync"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowindex"
	"github.com/toschoo/nowdb-go/nowplan"
	"github.com/toschoo/nowdb-go/record"
)

// defaultTreeOrder is the B+ tree fanout new indexes are created
// with when the caller doesn't ask for a specific one.
const defaultTreeOrder = 64

// IndexManager owns every index a Scope has declared, lazily opening
// each one's Tree on first use and persisting descriptors through the
// Scope's manifest. It implements nowplan.Catalog so the Planner can
// pick an index without importing nowscope or nowmodel.
type IndexManager struct {
	dir string
	mu  sync.RWMutex

	descs map[string]indexEntry
	trees map[string]*nowindex.Tree
}

// newIndexManager loads index descriptors from entries (already read
// from the Scope manifest) without yet opening any tree.
func newIndexManager(dir string, entries []indexEntry) *IndexManager {
	im := &IndexManager{
		dir:   dir,
		descs: make(map[string]indexEntry, len(entries)),
		trees: make(map[string]*nowindex.Tree, len(entries)),
	}
	for _, e := range entries {
		im.descs[e.Name] = e
	}
	return im
}

// entries returns the current descriptor set for persisting back into
// the Scope manifest.
func (im *IndexManager) entries() []indexEntry {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]indexEntry, 0, len(im.descs))
	for _, e := range im.descs {
		out = append(out, e)
	}
	return out
}

// Create declares a new index over target/targetName, keyed by keys
// (in order) per spec, and persists an empty tree for it immediately
// so a crash right after Create leaves a loadable (if empty) index
// rather than a dangling descriptor.
func (im *IndexManager) Create(name string, target record.TargetKind, targetName string, roleID uint32, keys []nowexpr.FieldKey, spec nowindex.KeySpec) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, exists := im.descs[name]; exists {
		return nowerr.New(nowerr.Invalid, "nowscope.IndexManager.Create", name, nil)
	}

	kf := make([]keyFieldEntry, len(keys))
	for i, k := range keys {
		kf[i] = keyFieldEntry{Target: k.Target, RoleID: k.RoleID, PropID: k.PropID, Offset: k.Offset}
	}
	e := indexEntry{
		Name:       name,
		Target:     int(target),
		TargetName: targetName,
		RoleID:     roleID,
		Order:      defaultTreeOrder,
		Offsets:    spec.Offsets,
		Widths:     spec.Widths,
		KeyFields:  kf,
	}

	t := nowindex.Create(name, spec, defaultTreeOrder)
	if err := t.Save(im.dir); err != nil {
		return err
	}
	im.descs[name] = e
	im.trees[name] = t
	return nil
}

// Tree returns (opening and caching it on first use) the named
// index's B+ tree.
func (im *IndexManager) Tree(name string) (*nowindex.Tree, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.treeLocked(name)
}

func (im *IndexManager) treeLocked(name string) (*nowindex.Tree, error) {
	if t, ok := im.trees[name]; ok {
		return t, nil
	}
	e, ok := im.descs[name]
	if !ok {
		return nil, nowerr.New(nowerr.NoSuchIndex, "nowscope.IndexManager.Tree", name, nil)
	}
	spec := nowindex.KeySpec{Offsets: e.Offsets, Widths: e.Widths}
	t, err := nowindex.Load(im.dir, name, spec, e.Order)
	if err != nil {
		return nil, err
	}
	im.trees[name] = t
	return t, nil
}

// PKTree returns the conventional primary-key index tree for roleID,
// the one registerVertex consults (and falls back to the on-disk
// index through, per spec §5, on an evache miss). It returns
// ok=false when the vertex type has no PK index yet.
func (im *IndexManager) PKTree(roleID uint32) (*nowindex.Tree, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()
	t, err := im.treeLocked(pkIndexName(roleID))
	if err != nil {
		return nil, false
	}
	return t, true
}

func pkIndexName(roleID uint32) string {
	return "pk_" + strconv.FormatUint(uint64(roleID), 10)
}

// Names lists every declared index's name, for an operator inspecting
// a scope rather than for anything on the query path.
func (im *IndexManager) Names() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]string, 0, len(im.descs))
	for name := range im.descs {
		out = append(out, name)
	}
	return out
}

// saveAll flushes every opened tree to disk, called from Scope.Close.
func (im *IndexManager) saveAll() error {
	im.mu.Lock()
	defer im.mu.Unlock()
	for _, t := range im.trees {
		if err := t.Save(im.dir); err != nil {
			return err
		}
	}
	return nil
}

// IndexesFor implements nowplan.Catalog: every descriptor declared
// over the given target/targetName, with its tree opened on demand.
func (im *IndexManager) IndexesFor(target record.TargetKind, targetName string) []nowplan.IndexDescriptor {
	im.mu.Lock()
	defer im.mu.Unlock()

	var out []nowplan.IndexDescriptor
	for name, e := range im.descs {
		if record.TargetKind(e.Target) != target || e.TargetName != targetName {
			continue
		}
		t, err := im.treeLocked(name)
		if err != nil {
			continue
		}
		keys := make([]nowexpr.FieldKey, len(e.KeyFields))
		for i, k := range e.KeyFields {
			keys[i] = nowexpr.FieldKey{Target: k.Target, RoleID: k.RoleID, PropID: k.PropID, Offset: k.Offset}
		}
		out = append(out, nowplan.IndexDescriptor{
			Name: name,
			Tree: t,
			Spec: nowindex.KeySpec{Offsets: e.Offsets, Widths: e.Widths},
			Keys: keys,
		})
	}
	return out
}
