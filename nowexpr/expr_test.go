package nowexpr

import (
	"testing"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/record"
)

type fakeCtx struct{}

func (fakeCtx) ResolveField(target record.TargetKind, roleID uint32, propID uint64) (int, record.ValueType, error) {
	return 0, record.TypeInt, nil
}
func (fakeCtx) ResolveText(key uint64) string { return "" }
func (fakeCtx) NeedText() bool                { return false }

func TestEvalConst(t *testing.T) {
	rec := make([]byte, 8)
	v, err := Eval(ConstExpr(IntValue(42)), fakeCtx{}, rec)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Int() != 42 {
		t.Fatalf("got %d, want 42", v.Int())
	}
}

func TestEvalArithmetic(t *testing.T) {
	rec := make([]byte, 8)
	expr := OpExpr(OpAdd, ConstExpr(IntValue(2)), ConstExpr(IntValue(3)))
	v, err := Eval(expr, fakeCtx{}, rec)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Float() != 5 {
		t.Fatalf("got %v, want 5", v.Float())
	}
}

func TestEvalComparison(t *testing.T) {
	rec := make([]byte, 8)
	expr := OpExpr(OpLt, ConstExpr(IntValue(2)), ConstExpr(IntValue(3)))
	v, err := Eval(expr, fakeCtx{}, rec)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool() {
		t.Fatal("expected true")
	}
}

func TestEvalIn(t *testing.T) {
	rec := make([]byte, 8)
	expr := OpExpr(OpIn, ConstExpr(IntValue(2)), ConstExpr(IntValue(1)), ConstExpr(IntValue(2)), ConstExpr(IntValue(3)))
	v, err := Eval(expr, fakeCtx{}, rec)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool() {
		t.Fatal("expected true (2 is in 1,2,3)")
	}
}

func TestEvalUnsupportedOpcode(t *testing.T) {
	rec := make([]byte, 8)
	expr := OpExpr(OpRoot, ConstExpr(IntValue(1)))
	_, err := Eval(expr, fakeCtx{}, rec)
	if nowerr.KindOf(err) != nowerr.NotSupported {
		t.Fatalf("err kind = %v, want NotSupported", nowerr.KindOf(err))
	}
}

func TestIsAggTopLevelOnly(t *testing.T) {
	agg := AggExpr(&Aggregate{Kind: AggSum})
	if !IsAgg(agg) {
		t.Fatal("expected IsAgg(agg) true")
	}
	wrapped := OpExpr(OpAdd, agg, ConstExpr(IntValue(1)))
	if !IsAgg(wrapped) {
		t.Fatal("expected IsAgg to find an Agg among Op args")
	}
	plain := ConstExpr(IntValue(1))
	if IsAgg(plain) {
		t.Fatal("expected IsAgg(plain) false")
	}
}

func TestRangeExtractionEquality(t *testing.T) {
	keyField := Field(record.TargetEdge, 1, 10)
	filter := OpExpr(OpEq, keyField, ConstExpr(IntValue(5)))

	fk, _ := fieldKeyOf(keyField)
	bounds, ok := Range(filter, []FieldKey{fk})
	if !ok {
		t.Fatal("expected range extraction to succeed")
	}
	if bounds[0].Lo.Int() != 5 || bounds[0].Hi.Int() != 5 {
		t.Fatalf("bounds = %+v, want [5,5]", bounds[0])
	}
}

func TestRangeExtractionBetween(t *testing.T) {
	keyField := Field(record.TargetEdge, 1, 10)
	filter := OpExpr(OpAnd,
		OpExpr(OpGe, keyField, ConstExpr(IntValue(10))),
		OpExpr(OpLe, keyField, ConstExpr(IntValue(20))),
	)

	fk, _ := fieldKeyOf(keyField)
	bounds, ok := Range(filter, []FieldKey{fk})
	if !ok {
		t.Fatal("expected range extraction to succeed")
	}
	if bounds[0].Lo.Int() != 10 || bounds[0].Hi.Int() != 20 {
		t.Fatalf("bounds = %+v, want [10,20]", bounds[0])
	}
}

func TestRangeExtractionFailsWithoutKeyCoverage(t *testing.T) {
	keyField := Field(record.TargetEdge, 1, 10)
	other := Field(record.TargetEdge, 1, 99)
	filter := OpExpr(OpEq, other, ConstExpr(IntValue(5)))

	fk, _ := fieldKeyOf(keyField)
	_, ok := Range(filter, []FieldKey{fk})
	if ok {
		t.Fatal("expected range extraction to fail when key isn't covered")
	}
}

func TestAggregateMapReduce(t *testing.T) {
	agg := &Aggregate{Kind: AggSum, Arg: ConstExpr(IntValue(0))}
	for _, n := range []int64{1, 2, 3} {
		agg.Arg = ConstExpr(IntValue(n))
		if err := agg.Map(fakeCtx{}, nil); err != nil {
			t.Fatalf("Map: %v", err)
		}
	}
	if agg.Reduce().Float() != 6 {
		t.Fatalf("sum = %v, want 6", agg.Reduce().Float())
	}
}
