package nowscope

import (
	"testing"

	"github.com/toschoo/nowdb-go/nowindex"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/nowstore"
	"github.com/toschoo/nowdb-go/nowtext"
	"github.com/toschoo/nowdb-go/record"
)

func testConfig() Config {
	return Config{
		Vertex:  nowstore.Config{BlockSize: 4096},
		Edge:    nowstore.Config{BlockSize: 4096},
		TextAlg: nowtext.AlgFNV1a,
	}
}

func TestOpenCreatesVertexStoreAndEdgeStoresFromModel(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.CreateVertexType("person", []nowmodel.PropertySpec{
		{Name: "id", Value: record.TypeUint, PK: true},
	}); err != nil {
		t.Fatalf("CreateVertexType: %v", err)
	}
	if err := s.CreateEdgeType("knows", "person", "person", record.TypeUint, record.TypeNothing, record.TypeNothing); err != nil {
		t.Fatalf("CreateEdgeType: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if _, err := s2.EdgeStore("knows"); err != nil {
		t.Fatalf("EdgeStore(knows) after reopen: %v", err)
	}
}

func TestRegisterVertexDedupsPrimaryKeyAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	roleID, err := s.CreateVertexType("person", []nowmodel.PropertySpec{
		{Name: "id", Value: record.TypeUint, PK: true},
	})
	if err != nil {
		t.Fatalf("CreateVertexType: %v", err)
	}

	pk := nowindex.EncodeUint64Field(42)
	vid1, isNew1, err := s.RegisterVertex(roleID, pk)
	if err != nil {
		t.Fatalf("RegisterVertex: %v", err)
	}
	if !isNew1 {
		t.Fatal("expected first registration to be new")
	}
	vid2, isNew2, err := s.RegisterVertex(roleID, pk)
	if err != nil {
		t.Fatalf("RegisterVertex (second): %v", err)
	}
	if isNew2 {
		t.Fatal("expected second registration of the same PK to be a duplicate")
	}
	if vid1 != vid2 {
		t.Fatalf("vid mismatch: %d != %d", vid1, vid2)
	}
}

func TestRegisterVertexSurvivesCacheEviction(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	roleID, err := s.CreateVertexType("person", []nowmodel.PropertySpec{
		{Name: "id", Value: record.TypeUint, PK: true},
	})
	if err != nil {
		t.Fatalf("CreateVertexType: %v", err)
	}

	pk := nowindex.EncodeUint64Field(7)
	vid, _, err := s.RegisterVertex(roleID, pk)
	if err != nil {
		t.Fatalf("RegisterVertex: %v", err)
	}

	// Simulate an evache miss (e.g. after an LRU eviction or restart) by
	// dropping straight to the on-disk index lookup the same way
	// RegisterVertex does on a cache miss.
	c := s.cachesFor(roleID)
	c.evache.Remove(vertexKey{roleID: roleID, pk: string(pk)})

	vid2, isNew, err := s.RegisterVertex(roleID, pk)
	if err != nil {
		t.Fatalf("RegisterVertex after eviction: %v", err)
	}
	if isNew {
		t.Fatal("expected the on-disk PK index to catch the duplicate")
	}
	if vid2 != vid {
		t.Fatalf("vid mismatch after eviction: %d != %d", vid2, vid)
	}
}

func TestProcedureCatalogPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Procedures().Create("recompute_totals", []byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	body, ok := s2.Procedures().Get("recompute_totals")
	if !ok {
		t.Fatal("expected procedure to survive reopen")
	}
	if len(body) != 3 || body[0] != 0x01 {
		t.Fatalf("body = %v, want [1 2 3]", body)
	}
}

func TestIndexesForImplementsPlanCatalog(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, testConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	roleID, err := s.CreateVertexType("person", []nowmodel.PropertySpec{
		{Name: "id", Value: record.TypeUint, PK: true},
	})
	if err != nil {
		t.Fatalf("CreateVertexType: %v", err)
	}

	descs := s.Indexes().IndexesFor(record.TargetVertex, "person")
	if len(descs) != 1 {
		t.Fatalf("IndexesFor returned %d descriptors, want 1", len(descs))
	}
	if descs[0].Name != pkIndexName(roleID) {
		t.Fatalf("descriptor name = %q, want %q", descs[0].Name, pkIndexName(roleID))
	}
}
