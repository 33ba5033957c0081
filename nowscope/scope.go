package nowscope

import (
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowindex"
	"github.com/toschoo/nowdb-go/nowlog"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/nowstore"
	"github.com/toschoo/nowdb-go/nowtext"
	"github.com/toschoo/nowdb-go/record"
)

// Config controls the Stores a Scope opens underneath it. Vertex and
// edge Stores share the same file geometry unless EdgeConfig
// overrides a specific edge type by name.
type Config struct {
	Vertex      nowstore.Config
	Edge        nowstore.Config
	EdgeConfig  map[string]nowstore.Config
	TextAlg     nowtext.Algorithm
	TextCache   int
}

// Scope is the top-level database namespace of spec §2.E: it owns the
// Model, the Text dictionary, a vertex Store, one edge Store per
// declared edge type, the Index Manager, and the vertex
// pre-registration caches (evache/ivache).
//
// Lock ordering throughout Scope's methods follows spec §5:
// Scope -> Store -> Model -> Text. A caller holding a Store's lock
// must never then acquire the Scope lock, only the reverse.
type Scope struct {
	dir string
	mu  sync.RWMutex // guards state below; acquired before any Store lock

	model *nowmodel.Model
	text  *nowtext.Dict

	vertexStore *nowstore.Store
	edgeStores  map[string]*nowstore.Store

	indexes *IndexManager
	procs   *ProcedureCatalog
	caches  map[uint32]*vertexCaches // per-roleID evache/ivache
	vidSeed map[uint32]uint64        // process-lifetime vid counters, seeded from the PK index

	config     Config
	closed     bool
	watchStops []func() error // one per Store's WatchRepairRequests watch

	log zerolog.Logger
}

// Open opens (creating, if absent) the scope rooted at dir: its
// Model, Text dictionary, vertex Store, one Store per Model-declared
// edge type, and the Index Manager. It first runs the crash-detection
// dance of manifest.go, mirroring the teacher's db.Open: a leftover
// ".tmp" manifest or dirty Error flag forces a repair pass before
// anything else is opened.
func Open(dir string, cfg Config) (*Scope, error) {
	if cfg.TextCache == 0 {
		cfg.TextCache = defaultCacheSize
	}

	needs, err := needsRepair(dir)
	if err != nil {
		return nil, err
	}
	var m *manifest
	if needs {
		m, err = repairManifest(dir)
	} else {
		m, err = readManifest(dir)
		if err != nil {
			m = &manifest{Magic: manifestMagic, Version: manifestVersion}
		}
	}
	if err != nil {
		return nil, err
	}

	model, err := nowmodel.Open(filepath.Join(dir, "model"))
	if err != nil {
		return nil, err
	}
	text, err := nowtext.Open(filepath.Join(dir, "text"), cfg.TextAlg, cfg.TextCache)
	if err != nil {
		return nil, err
	}
	procs, err := openProcedureCatalog(dir)
	if err != nil {
		return nil, err
	}

	s := &Scope{
		dir:        dir,
		model:      model,
		text:       text,
		edgeStores: make(map[string]*nowstore.Store),
		indexes:    newIndexManager(dir, m.Indexes),
		procs:      procs,
		caches:     make(map[uint32]*vertexCaches),
		vidSeed:    make(map[uint32]uint64),
		config:     cfg,
		log:        nowlog.For("nowscope"),
	}

	vcfg := cfg.Vertex
	vcfg.RecordSize = record.VertexSize
	s.vertexStore, err = nowstore.Open(filepath.Join(dir, "vertex"), vcfg)
	if err != nil {
		return nil, err
	}
	s.watchStore(s.vertexStore)

	for _, name := range model.EdgeNames() {
		e, err := model.GetEdgeByName(name)
		if err != nil {
			return nil, err
		}
		ecfg := cfg.Edge
		if override, ok := cfg.EdgeConfig[name]; ok {
			ecfg = override
		}
		ecfg.RecordSize = e.Size
		st, err := nowstore.Open(filepath.Join(dir, "edge_"+name), ecfg)
		if err != nil {
			return nil, err
		}
		s.edgeStores[name] = st
		s.watchStore(st)
	}

	if err := writeManifest(dir, &manifest{Indexes: s.indexes.entries()}); err != nil {
		return nil, err
	}
	return s, nil
}

// watchStore starts a crash-marker watch on st's directory, per
// WatchRepairRequests's doc comment: a sibling process (or external
// tooling) drops a ".repair" marker to request repair out of band. A
// live Scope cannot repair a Store while it holds that Store's mapped
// writer open, so onRequest only logs — the operator still runs
// `nowdbctl repair` against the closed directory. The watch's stop
// func is collected so Close can tear it down before the Store itself
// closes.
func (s *Scope) watchStore(st *nowstore.Store) {
	stop, err := nowstore.WatchRepairRequests(st, func() {
		s.log.Warn().Str("dir", st.Dir).Msg("external repair request observed; run nowdbctl repair after closing this scope")
	})
	if err != nil {
		s.log.Warn().Err(err).Str("dir", st.Dir).Msg("could not start crash-marker watch")
		return
	}
	s.watchStops = append(s.watchStops, stop)
}

// Close persists the Scope's manifest and index trees, then closes
// every owned Store in turn. The manifest is written with Error=true
// first and cleared only after every Store reports a clean Close, so
// a crash mid-Close is detected by the next Open as needing repair.
func (s *Scope) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for _, stop := range s.watchStops {
		stop()
	}

	if err := writeManifest(s.dir, &manifest{Error: true, Indexes: s.indexes.entries()}); err != nil {
		return err
	}
	if err := s.indexes.saveAll(); err != nil {
		return err
	}

	var firstErr error
	if err := s.vertexStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	for _, st := range s.edgeStores {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return writeManifest(s.dir, &manifest{Indexes: s.indexes.entries()})
}

// Model returns the Scope's catalog.
func (s *Scope) Model() *nowmodel.Model { return s.model }

// Text returns the Scope's string dictionary.
func (s *Scope) Text() *nowtext.Dict { return s.text }

// Indexes returns the Scope's IndexManager, usable directly as a
// nowplan.Catalog.
func (s *Scope) Indexes() *IndexManager { return s.indexes }

// Procedures returns the Scope's stored-procedure name registry.
func (s *Scope) Procedures() *ProcedureCatalog { return s.procs }

// VertexStore returns the Scope's single vertex Store.
func (s *Scope) VertexStore() *nowstore.Store { return s.vertexStore }

// EdgeStore returns the Store backing the named edge type, or an
// error if no such edge type has been declared (and hence opened).
func (s *Scope) EdgeStore(name string) (*nowstore.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.edgeStores[name]
	if !ok {
		return nil, nowerr.New(nowerr.Invalid, "nowscope.EdgeStore", name, nil)
	}
	return st, nil
}

// CreateEdgeType declares a new edge type on the Model and opens its
// backing Store, so a single call leaves both halves (catalog entry,
// on-disk files) consistent without the caller having to sequence
// them itself.
func (s *Scope) CreateEdgeType(name, originType, destinType string, labelType, weightType, weight2Type record.ValueType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roleID, err := s.model.AddEdge(name, originType, destinType, labelType, weightType, weight2Type)
	if err != nil {
		return err
	}
	e, err := s.model.GetEdgeByID(roleID)
	if err != nil {
		return err
	}
	ecfg := s.config.Edge
	if override, ok := s.config.EdgeConfig[name]; ok {
		ecfg = override
	}
	ecfg.RecordSize = e.Size
	st, err := nowstore.Open(filepath.Join(s.dir, "edge_"+name), ecfg)
	if err != nil {
		return err
	}
	s.edgeStores[name] = st
	return nil
}

// CreateVertexType declares a new vertex type on the Model. Vertices
// of every type share the single vertex Store (spec §4.S), so no new
// Store is opened here. If one of props carries PK:true, a PK index
// is created immediately so RegisterVertex can dedup against it from
// the very first insert.
func (s *Scope) CreateVertexType(name string, props []nowmodel.PropertySpec) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roleID, err := s.model.AddType(name, props)
	if err != nil {
		return 0, err
	}
	if pk, err := s.model.GetPK(roleID); err == nil {
		spec := nowindex.KeySpec{Offsets: []int{record.Value}, Widths: []int{8}}
		keys := []nowexpr.FieldKey{{Target: int(record.TargetVertex), RoleID: roleID, PropID: pk.PropID, Offset: record.Value}}
		if err := s.indexes.Create(pkIndexName(roleID), record.TargetVertex, name, roleID, keys, spec); err != nil {
			return 0, err
		}
	}
	return roleID, nil
}

// FieldLayout reports the number of declared properties for roleID,
// caching the result in ivache so repeated VRow construction for the
// same vertex type doesn't re-walk the Model's property map every
// time.
func (s *Scope) FieldLayout(roleID uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cachesFor(roleID)
	if fl, ok := c.ivache.Get(roleID); ok {
		return fl.size
	}
	n := len(s.model.PropsForRole(roleID))
	c.ivache.Add(roleID, fieldLayout{size: n})
	return n
}

func (s *Scope) cachesFor(roleID uint32) *vertexCaches {
	if c, ok := s.caches[roleID]; ok {
		return c
	}
	c := newVertexCaches()
	s.caches[roleID] = c
	return c
}

// RegisterVertex assigns (or recovers, if pk was already registered)
// the vid for a vertex of the given role identified by primary-key
// bytes pk. It first consults the per-role evache under the Scope
// lock, to detect duplicate primary keys without hitting the on-disk
// index on every insert; on a miss it falls through to
// the on-disk PK index before minting a fresh vid, so a cold cache
// after restart still catches duplicates instead of silently
// reassigning an existing key.
func (s *Scope) RegisterVertex(roleID uint32, pk []byte) (vid uint64, isNew bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cachesFor(roleID)
	key := vertexKey{roleID: roleID, pk: string(pk)}
	if v, ok := c.evache.Get(key); ok {
		return v, false, nil
	}

	if tree, ok := s.indexes.PKTree(roleID); ok {
		it := tree.GetIter(pk)
		if it.Next() {
			v := it.Value().PageID
			c.evache.Add(key, v)
			return v, false, nil
		}
	}

	vid = s.nextVID(roleID)
	if tree, ok := s.indexes.PKTree(roleID); ok {
		if err := tree.Insert(pk, vid); err != nil {
			return 0, false, err
		}
	}
	c.evache.Add(key, vid)
	return vid, true, nil
}

// nextVID hands out a process-lifetime monotonic vid for roleID,
// seeded on first use from the PK index's current maximum (cheap: the
// pack's B+ tree keeps every leaf in a singly linked chain, so a full
// ascending range scan is a single pass with no re-balancing).
func (s *Scope) nextVID(roleID uint32) uint64 {
	cur, ok := s.vidSeed[roleID]
	if !ok {
		cur = s.seedVIDCounter(roleID)
	}
	cur++
	s.vidSeed[roleID] = cur
	return cur
}

func (s *Scope) seedVIDCounter(roleID uint32) uint64 {
	var max uint64
	if tree, ok := s.indexes.PKTree(roleID); ok {
		it := tree.Range(nil, nil, nowindex.Asc)
		for it.Next() {
			if v := it.Value().PageID; v > max {
				max = v
			}
		}
	}
	s.vidSeed[roleID] = max
	return max
}
