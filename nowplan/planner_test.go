package nowplan

import (
	"testing"

	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowindex"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/record"
)

type fakeCatalog struct {
	indexes []IndexDescriptor
}

func (c fakeCatalog) IndexesFor(target record.TargetKind, name string) []IndexDescriptor {
	return c.indexes
}

func newTestModel(t *testing.T) (*nowmodel.Model, uint32) {
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
	return m, roleID
}

func TestBuildFullscanWhenNoIndex(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")

	q := &Query{
		From:  "person",
		Where: nowexpr.OpExpr(nowexpr.OpGt, nowexpr.Field(record.TargetVertex, roleID, age.PropID), nowexpr.ConstExpr(nowexpr.IntValue(18))),
	}
	plan, err := Build(q, m, fakeCatalog{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reader := findNode(plan, NodeReader)
	if reader.Stype != StypeFS {
		t.Fatalf("Stype = %v, want StypeFS", reader.Stype)
	}
	if reader.Target != record.TargetVertex {
		t.Fatalf("Target = %v, want TargetVertex", reader.Target)
	}
}

func TestBuildSearchWhenEqualityCoversIndex(t *testing.T) {
	m, roleID := newTestModel(t)
	pk, _ := m.GetPK(roleID)

	idx := IndexDescriptor{
		Name: "pk_person",
		Spec: nowindex.KeySpec{Offsets: []int{0}, Widths: []int{8}},
		Keys: []nowexpr.FieldKey{{Target: int(record.TargetVertex), RoleID: roleID, PropID: pk.PropID, Offset: -1}},
	}
	q := &Query{
		From:  "person",
		Where: nowexpr.OpExpr(nowexpr.OpEq, nowexpr.Field(record.TargetVertex, roleID, pk.PropID), nowexpr.ConstExpr(nowexpr.UintValue(7))),
	}
	plan, err := Build(q, m, fakeCatalog{indexes: []IndexDescriptor{idx}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reader := findNode(plan, NodeReader)
	if reader.Stype != StypeSearch {
		t.Fatalf("Stype = %v, want StypeSearch", reader.Stype)
	}
	if reader.Index == nil || reader.Index.Name != "pk_person" {
		t.Fatal("expected pk_person index selected")
	}
}

func TestBuildRejectsProjectionNotKeyEqualToGrouping(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")
	pk, _ := m.GetPK(roleID)

	q := &Query{
		From:  "person",
		Group: []*nowexpr.Expr{nowexpr.Field(record.TargetVertex, roleID, age.PropID)},
		Select: []ProjField{
			{Expr: nowexpr.Field(record.TargetVertex, roleID, pk.PropID)}, // not the grouping field
		},
	}
	if _, err := Build(q, m, fakeCatalog{}); err == nil {
		t.Fatal("expected Invalid error for non-key-equal projection")
	}
}

func TestBuildAcceptsAggregateAlongsideGrouping(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")

	q := &Query{
		From:  "person",
		Group: []*nowexpr.Expr{nowexpr.Field(record.TargetVertex, roleID, age.PropID)},
		Select: []ProjField{
			{Expr: nowexpr.Field(record.TargetVertex, roleID, age.PropID)},
			{Expr: nowexpr.AggExpr(&nowexpr.Aggregate{Kind: nowexpr.AggCount})},
		},
	}
	if _, err := Build(q, m, fakeCatalog{}); err != nil {
		t.Fatalf("Build: %v", err)
	}
}

func TestBuildUnknownTargetTreatedAsEdge(t *testing.T) {
	m, _ := newTestModel(t)
	q := &Query{From: "nosuchtype"}
	plan, err := Build(q, m, fakeCatalog{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	reader := findNode(plan, NodeReader)
	if reader.Target != record.TargetEdge {
		t.Fatalf("Target = %v, want TargetEdge for unknown name", reader.Target)
	}
}

func TestPlanSummaryJSON(t *testing.T) {
	m, roleID := newTestModel(t)
	age, _ := m.GetPropByName(roleID, "age")
	q := &Query{
		From:  "person",
		Where: nowexpr.OpExpr(nowexpr.OpGt, nowexpr.Field(record.TargetVertex, roleID, age.PropID), nowexpr.ConstExpr(nowexpr.IntValue(18))),
	}
	plan, err := Build(q, m, fakeCatalog{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b, err := plan.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(b) == 0 {
		t.Fatal("expected non-empty summary JSON")
	}
}

func findNode(p *Plan, kind NodeKind) Node {
	for _, n := range p.Nodes {
		if n.Kind == kind {
			return n
		}
	}
	return Node{}
}
