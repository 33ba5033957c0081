// Model catalog operations (spec §4.M): type/edge/property
// declaration, id assignment, and the offset-assignment algorithms
// that let VRow and the expression evaluator find a property's slot
// without re-deriving it on every row.
package nowmodel

import (
	"sort"
	"strconv"
	"sync"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/record"
)

// PropertySpec describes one property as given to addType.
type PropertySpec struct {
	Name  string
	Value record.ValueType
	PK    bool
	Stamp bool
	Inc   bool
}

// PEdgeSpec describes one property as given to addEdge, naming which
// of the edge record's fixed columns it addresses.
type PEdgeSpec struct {
	Name   string
	Origin bool
	Destin bool
	Stamp  bool
	// Label/Weight/Weight2 select a fixed column when none of
	// Origin/Destin/Stamp apply; exactly one must be set in that case.
	Label   bool
	Weight  bool
	Weight2 bool
}

// Model is the Scope-wide catalog of declared vertex and edge types.
// Every operation is internally locked (spec §4.M), so callers never
// need an external mutex around a Model.
type Model struct {
	dir string
	mu  sync.RWMutex

	vertices   map[uint32]*Vertex
	vByName    map[string]uint32
	properties map[uint64]*Property // keyed by PropID
	propByName map[string]uint64    // keyed by roleid-qualified name
	edges      map[uint32]*Edge
	eByName    map[string]uint32
	pedges     map[uint64]*PEdge
	pedgeByName map[string]uint64

	nextRole uint32
	nextProp uint64
}

func propKey(roleID uint32, name string) string {
	return strconv.FormatUint(uint64(roleID), 10) + "\x00" + name
}

// Open loads (or creates) the model catalog rooted at dir.
func Open(dir string) (*Model, error) {
	st, err := readCatalog(dir)
	if err != nil {
		return nil, err
	}

	m := &Model{
		dir:         dir,
		vertices:    make(map[uint32]*Vertex),
		vByName:     make(map[string]uint32),
		properties:  make(map[uint64]*Property),
		propByName:  make(map[string]uint64),
		edges:       make(map[uint32]*Edge),
		eByName:     make(map[string]uint32),
		pedges:      make(map[uint64]*PEdge),
		pedgeByName: make(map[string]uint64),
	}

	for i := range st.Vertices {
		v := st.Vertices[i]
		m.vertices[v.RoleID] = &v
		m.vByName[v.Name] = v.RoleID
		if v.RoleID >= m.nextRole {
			m.nextRole = v.RoleID + 1
		}
	}
	for i := range st.Edges {
		e := st.Edges[i]
		m.edges[e.RoleID] = &e
		m.eByName[e.Name] = e.RoleID
		if e.RoleID >= m.nextRole {
			m.nextRole = e.RoleID + 1
		}
	}
	for i := range st.Properties {
		p := st.Properties[i]
		m.properties[p.PropID] = &p
		m.propByName[propKey(p.RoleID, p.Name)] = p.PropID
		if p.PropID >= m.nextProp {
			m.nextProp = p.PropID + 1
		}
	}
	for i := range st.PEdges {
		p := st.PEdges[i]
		m.pedges[p.PropID] = &p
		m.pedgeByName[propKey(p.RoleID, p.Name)] = p.PropID
		if p.PropID >= m.nextProp {
			m.nextProp = p.PropID + 1
		}
	}
	return m, nil
}

func (m *Model) persist() error {
	var st catalogState
	for _, v := range m.vertices {
		st.Vertices = append(st.Vertices, *v)
	}
	for _, p := range m.properties {
		st.Properties = append(st.Properties, *p)
	}
	for _, e := range m.edges {
		st.Edges = append(st.Edges, *e)
	}
	for _, p := range m.pedges {
		st.PEdges = append(st.PEdges, *p)
	}
	return writeCatalog(m.dir, st)
}

// WhatIs reports whether name is a declared vertex type, edge type, or
// neither.
func (m *Model) WhatIs(name string) Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.vByName[name]; ok {
		return KindVertex
	}
	if _, ok := m.eByName[name]; ok {
		return KindEdge
	}
	return KindUnknown
}

// AddType declares a new vertex type with the given properties,
// applying the offset-assignment algorithm of spec §4.M: the primary
// key property sits at offset 0, the stamp (if any) at offset 1, the
// rest in declared order.
func (m *Model) AddType(name string, props []PropertySpec) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vByName[name]; ok {
		return 0, nowerr.Sentinel(nowerr.DupKey)
	}

	ordered, stamped, err := orderProperties(props)
	if err != nil {
		return 0, err
	}

	roleID := m.nextRole
	m.nextRole++

	v := &Vertex{
		RoleID:  roleID,
		Stamped: stamped,
		Num:     uint16(len(ordered)),
		Size:    uint32(record.VertexSize),
		Name:    name,
	}

	newProps := make([]*Property, 0, len(ordered))
	for off, spec := range ordered {
		if _, exists := m.propByName[propKey(roleID, spec.Name)]; exists {
			return 0, nowerr.Sentinel(nowerr.DupKey)
		}
		p := &Property{
			PropID: m.nextProp,
			RoleID: roleID,
			Pos:    uint32(off),
			Value:  spec.Value,
			PK:     spec.PK,
			Stamp:  spec.Stamp,
			Inc:    spec.Inc,
			Off:    uint32(off),
			Name:   spec.Name,
		}
		m.nextProp++
		newProps = append(newProps, p)
	}

	m.vertices[roleID] = v
	m.vByName[name] = roleID
	for _, p := range newProps {
		m.properties[p.PropID] = p
		m.propByName[propKey(roleID, p.Name)] = p.PropID
	}

	if err := m.persist(); err != nil {
		return 0, err
	}
	return roleID, nil
}

// orderProperties applies the pk@0/stamp@1/declared-order offset
// algorithm and reports whether a stamp property was present.
func orderProperties(props []PropertySpec) ([]PropertySpec, bool, error) {
	var pk *PropertySpec
	var stamp *PropertySpec
	var rest []PropertySpec

	for i := range props {
		p := props[i]
		switch {
		case p.PK:
			if pk != nil {
				return nil, false, nowerr.New(nowerr.Invalid, "nowmodel.orderProperties", p.Name, nil)
			}
			pk = &props[i]
		case p.Stamp:
			if stamp != nil {
				return nil, false, nowerr.New(nowerr.Invalid, "nowmodel.orderProperties", p.Name, nil)
			}
			stamp = &props[i]
		default:
			rest = append(rest, p)
		}
	}

	ordered := make([]PropertySpec, 0, len(props))
	if pk != nil {
		ordered = append(ordered, *pk)
	}
	if stamp != nil {
		ordered = append(ordered, *stamp)
	}
	ordered = append(ordered, rest...)
	return ordered, stamp != nil, nil
}

// AddProperty adds a single property to an already-declared vertex
// type, appending it after the existing properties (pk and stamp
// slots are already fixed at this point).
func (m *Model) AddProperty(typeName string, spec PropertySpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	roleID, ok := m.vByName[typeName]
	if !ok {
		return nowerr.Sentinel(nowerr.KeyNotFound)
	}
	if _, exists := m.propByName[propKey(roleID, spec.Name)]; exists {
		return nowerr.Sentinel(nowerr.DupKey)
	}

	v := m.vertices[roleID]
	off := uint32(v.Num)
	p := &Property{
		PropID: m.nextProp,
		RoleID: roleID,
		Pos:    off,
		Value:  spec.Value,
		PK:     spec.PK,
		Stamp:  spec.Stamp,
		Inc:    spec.Inc,
		Off:    off,
		Name:   spec.Name,
	}
	m.nextProp++
	v.Num++
	if spec.Stamp {
		v.Stamped = true
	}

	m.properties[p.PropID] = p
	m.propByName[propKey(roleID, p.Name)] = p.PropID

	return m.persist()
}

// AddEdge declares a new edge type between two already-declared
// vertex types.
func (m *Model) AddEdge(name, originType, destinType string, labelType, weightType, weight2Type record.ValueType) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.eByName[name]; ok {
		return 0, nowerr.Sentinel(nowerr.DupKey)
	}
	origin, ok := m.vByName[originType]
	if !ok {
		return 0, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	destin, ok := m.vByName[destinType]
	if !ok {
		return 0, nowerr.Sentinel(nowerr.KeyNotFound)
	}

	roleID := m.nextRole
	m.nextRole++

	e := &Edge{
		RoleID:      roleID,
		Origin:      origin,
		Destin:      destin,
		LabelType:   labelType,
		WeightType:  weightType,
		Weight2Type: weight2Type,
		Size:        uint32(record.EdgeFixedSize),
		Name:        name,
	}
	m.edges[roleID] = e
	m.eByName[name] = roleID

	if err := m.persist(); err != nil {
		return 0, err
	}
	return roleID, nil
}

// AddEdgeProperty names a property of an edge type, classifying it
// into one of the record's fixed column slots per spec §4.M's edge
// property classification algorithm: exactly one property is tagged
// origin, one destin, optionally one stamp; the rest occupy whichever
// of label/weight/weight2 the edge type declared.
func (m *Model) AddEdgeProperty(edgeName string, spec PEdgeSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	roleID, ok := m.eByName[edgeName]
	if !ok {
		return nowerr.Sentinel(nowerr.KeyNotFound)
	}
	if _, exists := m.pedgeByName[propKey(roleID, spec.Name)]; exists {
		return nowerr.Sentinel(nowerr.DupKey)
	}

	e := m.edges[roleID]
	var off uint32
	var value record.ValueType
	switch {
	case spec.Origin:
		off, value = record.Origin, record.TypeUint
	case spec.Destin:
		off, value = record.Destin, record.TypeUint
	case spec.Stamp:
		off, value = record.Tmstmp, record.TypeTime
	case spec.Label:
		off, value = record.Label, e.LabelType
	case spec.Weight:
		off, value = record.Weight, e.WeightType
	case spec.Weight2:
		off, value = record.Weight2, e.Weight2Type
	default:
		return nowerr.New(nowerr.Invalid, "nowmodel.AddEdgeProperty", spec.Name, nil)
	}

	p := &PEdge{
		PropID: m.nextProp,
		RoleID: roleID,
		Pos:    uint32(len(m.pedgesFor(roleID))),
		Value:  value,
		Origin: spec.Origin,
		Destin: spec.Destin,
		Stamp:  spec.Stamp,
		Off:    off,
		Name:   spec.Name,
	}
	m.nextProp++
	e.Num++
	if spec.Stamp {
		e.StampPropID = p.PropID
	}

	m.pedges[p.PropID] = p
	m.pedgeByName[propKey(roleID, p.Name)] = p.PropID

	return m.persist()
}

func (m *Model) pedgesFor(roleID uint32) []*PEdge {
	var out []*PEdge
	for _, p := range m.pedges {
		if p.RoleID == roleID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos < out[j].Pos })
	return out
}

// GetVertexByName looks up a declared vertex type by name.
func (m *Model) GetVertexByName(name string) (Vertex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.vByName[name]
	if !ok {
		return Vertex{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *m.vertices[id], nil
}

// GetVertexByID looks up a declared vertex type by role id.
func (m *Model) GetVertexByID(id uint32) (Vertex, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vertices[id]
	if !ok {
		return Vertex{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *v, nil
}

// EdgeNames lists every declared edge type, for a Scope enumerating
// which edge Stores to open at startup.
func (m *Model) EdgeNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.eByName))
	for name := range m.eByName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetEdgeByName looks up a declared edge type by name.
func (m *Model) GetEdgeByName(name string) (Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.eByName[name]
	if !ok {
		return Edge{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *m.edges[id], nil
}

// GetEdgeByID looks up a declared edge type by role id.
func (m *Model) GetEdgeByID(id uint32) (Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.edges[id]
	if !ok {
		return Edge{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *e, nil
}

// GetPropByName looks up a vertex type's property by name.
func (m *Model) GetPropByName(roleID uint32, name string) (Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.propByName[propKey(roleID, name)]
	if !ok {
		return Property{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *m.properties[id], nil
}

// GetPropByID looks up a property by its global id.
func (m *Model) GetPropByID(propID uint64) (Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[propID]
	if !ok {
		return Property{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *p, nil
}

// GetPedgeByID looks up an edge type's property by its global id.
func (m *Model) GetPedgeByID(propID uint64) (PEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pedges[propID]
	if !ok {
		return PEdge{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *p, nil
}

// GetPedgeByName looks up an edge type's named property.
func (m *Model) GetPedgeByName(roleID uint32, name string) (PEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pedgeByName[propKey(roleID, name)]
	if !ok {
		return PEdge{}, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	return *m.pedges[id], nil
}

// GetPK returns the primary-key property of a vertex type.
func (m *Model) GetPK(roleID uint32) (Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.properties {
		if p.RoleID == roleID && p.PK {
			return *p, nil
		}
	}
	return Property{}, nowerr.Sentinel(nowerr.KeyNotFound)
}

// PropsForRole returns every declared property of a vertex type, in
// slot order (Off ascending).
func (m *Model) PropsForRole(roleID uint32) []Property {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Property
	for _, p := range m.properties {
		if p.RoleID == roleID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Off < out[j].Off })
	return out
}
