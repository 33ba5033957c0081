package nowvrow

import (
	"testing"

	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/record"
)

type fakeCtx struct{}

func (fakeCtx) ResolveField(target record.TargetKind, roleID uint32, propID uint64) (int, record.ValueType, error) {
	return 0, record.TypeInt, nil
}
func (fakeCtx) ResolveText(key uint64) string { return "" }
func (fakeCtx) NeedText() bool                { return false }

func newTestModel(t *testing.T) (*nowmodel.Model, uint32) {
	t.Helper()
	m, err := nowmodel.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	roleID, err := m.AddType("person", []nowmodel.PropertySpec{
		{Name: "id", Value: record.TypeUint, PK: true},
		{Name: "age", Value: record.TypeInt},
		{Name: "name", Value: record.TypeText},
	})
	if err != nil {
		t.Fatalf("AddType: %v", err)
	}
	return m, roleID
}

func vertexRecord(roleID uint32, vid, propID uint64, val uint64, typ record.ValueType) []byte {
	v := record.Vertex{RoleID: roleID, VID: vid, PropID: propID, VType: typ}
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(val >> (8 * i))
	}
	v.Value = b
	enc := record.EncodeVertex(v)
	return enc[:]
}

func TestAddAndCompleteRequiresAllSlots(t *testing.T) {
	m, roleID := newTestModel(t)
	age, err := m.GetPropByName(roleID, "age")
	if err != nil {
		t.Fatalf("GetPropByName: %v", err)
	}
	name, err := m.GetPropByName(roleID, "name")
	if err != nil {
		t.Fatalf("GetPropByName: %v", err)
	}

	r := New(roleID, m, fakeCtx{})
	r.declare(age.PropID)
	r.declare(name.PropID)

	if ok := r.Add(vertexRecord(roleID, 1, age.PropID, 30, record.TypeInt)); !ok {
		t.Fatal("expected age record to be accepted")
	}
	if _, _, _, ok := r.Complete(); ok {
		t.Fatal("expected incomplete row before name arrives")
	}
	if ok := r.Add(vertexRecord(roleID, 1, name.PropID, 99, record.TypeText)); !ok {
		t.Fatal("expected name record to be accepted")
	}
	row, presence, size, ok := r.Complete()
	if !ok {
		t.Fatal("expected complete row")
	}
	if size != r.rowSize || len(row) != size || len(presence) == 0 {
		t.Fatalf("unexpected row shape: size=%d len(row)=%d", size, len(row))
	}
}

func TestAddRejectsUninterestingProperty(t *testing.T) {
	m, roleID := newTestModel(t)
	pk, _ := m.GetPK(roleID)

	r := New(roleID, m, fakeCtx{})
	if ok := r.Add(vertexRecord(roleID, 1, pk.PropID, 1, record.TypeUint)); ok {
		t.Fatal("expected an undeclared property to be rejected")
	}
}

func TestBucketSwitchResetsPresence(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")

	r := New(roleID, m, fakeCtx{})
	r.declare(age.PropID)

	r.Add(vertexRecord(roleID, 1, age.PropID, 10, record.TypeInt))
	if _, _, _, ok := r.Complete(); !ok {
		t.Fatal("expected bucket 1 complete (single declared slot)")
	}
	r.Add(vertexRecord(roleID, 2, age.PropID, 20, record.TypeInt))
	vid, _ := r.VID()
	if vid != 2 {
		t.Fatalf("VID = %d, want 2", vid)
	}
	if _, _, _, ok := r.Complete(); !ok {
		t.Fatal("expected bucket 2 complete too")
	}
}

func TestForceFlushesIncompleteBucket(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")
	name, _ := m.GetPropByName(roleID, "name")

	r := New(roleID, m, fakeCtx{})
	r.declare(age.PropID)
	r.declare(name.PropID)

	r.Add(vertexRecord(roleID, 1, age.PropID, 30, record.TypeInt))
	if _, _, _, ok := r.Complete(); ok {
		t.Fatal("expected incomplete")
	}
	if _, _, _, ok := r.Force(); !ok {
		t.Fatal("Force should flush regardless of completeness")
	}
}

func TestFromFilterAutoDeclaresFields(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")

	filter := nowexpr.OpExpr(nowexpr.OpGt,
		nowexpr.Field(record.TargetVertex, roleID, age.PropID),
		nowexpr.ConstExpr(nowexpr.IntValue(18)))

	r := FromFilter(roleID, m, fakeCtx{}, filter)
	if len(r.slots) != 1 {
		t.Fatalf("expected 1 auto-declared slot, got %d", len(r.slots))
	}

	r.Add(vertexRecord(roleID, 1, age.PropID, 21, record.TypeInt))
	_, ok, err := r.Eval()
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !ok {
		t.Fatal("expected filter to pass for age=21")
	}
}
