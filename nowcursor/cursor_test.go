package nowcursor

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/nowplan"
	"github.com/toschoo/nowdb-go/nowtext"
	"github.com/toschoo/nowdb-go/record"
)

// fakeReader feeds a fixed list of pre-built pages to a Cursor without
// touching nowfile at all, isolating the filter/group/projection
// pipeline under test from storage concerns already covered by
// nowreader's own tests.
type fakeReader struct {
	pages [][]byte
	pos   int
}

func (r *fakeReader) Open() error { r.pos = 0; return nil }
func (r *fakeReader) Move() error {
	if r.pos >= len(r.pages) {
		return io.EOF
	}
	r.pos++
	return nil
}
func (r *fakeReader) Page() []byte             { return r.pages[r.pos-1] }
func (r *fakeReader) Key() []byte              { return nil }
func (r *fakeReader) Rewind() error            { r.pos = 0; return nil }
func (r *fakeReader) SetPeriod(from, to int64) {}
func (r *fakeReader) Close() error             { return nil }

func vertexRec(roleID uint32, vid, propID uint64, val int64) []byte {
	b := make([]byte, record.VertexSize)
	binary.LittleEndian.PutUint32(b[record.Role:], roleID)
	binary.LittleEndian.PutUint64(b[record.VertexCol:], vid)
	binary.LittleEndian.PutUint64(b[record.Prop:], propID)
	binary.LittleEndian.PutUint64(b[record.Value:], uint64(val))
	b[record.Vtype] = byte(record.TypeInt)
	return b
}

func newPersonModel(t *testing.T) (*nowmodel.Model, uint32, uint64, uint64) {
	t.Helper()
	m, err := nowmodel.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	roleID, err := m.AddType("person", []nowmodel.PropertySpec{
		{Name: "id", Value: record.TypeUint, PK: true},
		{Name: "age", Value: record.TypeInt},
	})
	if err != nil {
		t.Fatalf("AddType: %v", err)
	}
	id, _ := m.GetPropByName(roleID, "id")
	age, _ := m.GetPropByName(roleID, "age")
	return m, roleID, id.PropID, age.PropID
}

func newTestText(t *testing.T) *nowtext.Dict {
	t.Helper()
	d, err := nowtext.Open(t.TempDir(), nowtext.AlgFNV1a, 16)
	if err != nil {
		t.Fatalf("nowtext.Open: %v", err)
	}
	return d
}

func TestFetchProjectsVertexRowsPastAgeFilter(t *testing.T) {
	m, roleID, idProp, ageProp := newPersonModel(t)
	text := newTestText(t)

	page := make([]byte, 0, record.VertexSize*4)
	page = append(page, vertexRec(roleID, 1, idProp, 1)...)
	page = append(page, vertexRec(roleID, 1, ageProp, 30)...)
	page = append(page, vertexRec(roleID, 2, idProp, 2)...)
	page = append(page, vertexRec(roleID, 2, ageProp, 10)...)

	q := &nowplan.Query{
		From:  "person",
		Where: nowexpr.OpExpr(nowexpr.OpGt, nowexpr.Field(record.TargetVertex, roleID, ageProp), nowexpr.ConstExpr(nowexpr.IntValue(18))),
		Select: []nowplan.ProjField{
			{Expr: nowexpr.Field(record.TargetVertex, roleID, idProp)},
		},
	}
	plan, err := nowplan.Build(q, m, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	reader := &fakeReader{pages: [][]byte{page}}
	cur, err := Open(plan, reader, m, text, record.VertexSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cur.Close()

	buf := make([]byte, 0, 4096)
	out, count, err := cur.Fetch(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("Fetch: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 (only vid 1 passes age>18)", count)
	}
	if len(out) == 0 || out[len(out)-1] != EOROW {
		t.Fatal("expected an EOROW-terminated row")
	}
}

func TestFetchDrainsEOFAcrossCalls(t *testing.T) {
	m, roleID, idProp, ageProp := newPersonModel(t)
	text := newTestText(t)

	page := make([]byte, 0, record.VertexSize*2)
	page = append(page, vertexRec(roleID, 1, idProp, 1)...)
	page = append(page, vertexRec(roleID, 1, ageProp, 40)...)

	q := &nowplan.Query{
		From: "person",
		Select: []nowplan.ProjField{
			{Expr: nowexpr.Field(record.TargetVertex, roleID, idProp)},
		},
	}
	plan, err := nowplan.Build(q, m, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reader := &fakeReader{pages: [][]byte{page}}
	cur, err := Open(plan, reader, m, text, record.VertexSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cur.Close()

	buf := make([]byte, 0, 4096)
	_, count, err := cur.Fetch(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("first Fetch: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	_, count2, err := cur.Fetch(buf)
	if err != io.EOF {
		t.Fatalf("second Fetch err = %v, want io.EOF", err)
	}
	if count2 != 0 {
		t.Fatalf("second Fetch count = %d, want 0", count2)
	}
}

func TestFetchGroupsAndCountsPerKey(t *testing.T) {
	m, roleID, idProp, ageProp := newPersonModel(t)
	text := newTestText(t)

	// Two records at age=20 (ids 1,2), one at age=30 (id 3). Group by
	// age, project age and count(*).
	page := make([]byte, 0, record.VertexSize*6)
	page = append(page, vertexRec(roleID, 1, idProp, 1)...)
	page = append(page, vertexRec(roleID, 1, ageProp, 20)...)
	page = append(page, vertexRec(roleID, 2, idProp, 2)...)
	page = append(page, vertexRec(roleID, 2, ageProp, 20)...)
	page = append(page, vertexRec(roleID, 3, idProp, 3)...)
	page = append(page, vertexRec(roleID, 3, ageProp, 30)...)

	countAgg := nowexpr.AggExpr(&nowexpr.Aggregate{Kind: nowexpr.AggCount})
	q := &nowplan.Query{
		From:  "person",
		Group: []*nowexpr.Expr{nowexpr.Field(record.TargetVertex, roleID, ageProp)},
		Select: []nowplan.ProjField{
			{Expr: nowexpr.Field(record.TargetVertex, roleID, ageProp)},
			{Expr: countAgg},
		},
		Aggregates: []*nowexpr.Expr{countAgg},
	}
	plan, err := nowplan.Build(q, m, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reader := &fakeReader{pages: [][]byte{page}}
	cur, err := Open(plan, reader, m, text, record.VertexSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cur.Close()

	buf := make([]byte, 0, 4096)
	total := 0
	for {
		out, count, err := cur.Fetch(buf)
		total += count
		_ = out
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if count == 0 {
			break
		}
	}
	if total != 2 {
		t.Fatalf("total groups emitted = %d, want 2 (age=20 x2, age=30 x1)", total)
	}
}
