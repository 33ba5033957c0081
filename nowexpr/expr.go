package nowexpr

import (
	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/record"
)

// Kind discriminates an Expr's variant.
type Kind int

const (
	KindField Kind = iota
	KindConst
	KindOp
	KindRef
	KindAgg
)

// Expr is the tagged-union expression node of spec §4.X. Only the
// fields relevant to Kind are populated; the rest are zero.
type Expr struct {
	Kind Kind

	// Field
	Target record.TargetKind
	RoleID uint32
	PropID uint64
	Offset int // -1 when the offset must be resolved via Context

	// Const
	Const Value

	// Op
	Op   Opcode
	Args []*Expr

	// Ref
	Ref *Expr

	// Agg
	Agg *Aggregate
}

// Field builds a Field expression addressing a property by id; the
// Context resolves (offset, type) at evaluation time.
func Field(target record.TargetKind, roleID uint32, propID uint64) *Expr {
	return &Expr{Kind: KindField, Target: target, RoleID: roleID, PropID: propID, Offset: -1}
}

// FixedField builds a Field expression whose byte offset is already
// known (the builtin edge columns ORIGIN/DESTIN/EDGE/LABEL/TMSTMP/
// WEIGHT/WEIGHT2, or a vertex's ROLE/VERTEX/PROP/VALUE/VTYPE).
func FixedField(target record.TargetKind, offset int, typ record.ValueType) *Expr {
	return &Expr{Kind: KindField, Target: target, Offset: offset, Const: Value{Type: typ}}
}

// ConstExpr builds a Const expression.
func ConstExpr(v Value) *Expr {
	return &Expr{Kind: KindConst, Const: v}
}

// OpExpr builds an Op expression.
func OpExpr(op Opcode, args ...*Expr) *Expr {
	return &Expr{Kind: KindOp, Op: op, Args: args}
}

// RefExpr builds a Ref expression, sharing a subtree in filters that
// need the same computed value in more than one place.
func RefExpr(target *Expr) *Expr {
	return &Expr{Kind: KindRef, Ref: target}
}

// AggExpr builds an Agg expression around an aggregate handle.
func AggExpr(agg *Aggregate) *Expr {
	return &Expr{Kind: KindAgg, Agg: agg}
}

// Context resolves everything an Expr needs from outside its own
// tree: a Field's (offset, type) via the Model, and a text surrogate's
// resolved string via the Text dictionary.
type Context interface {
	ResolveField(target record.TargetKind, roleID uint32, propID uint64) (offset int, typ record.ValueType, err error)
	ResolveText(key uint64) string
	NeedText() bool
}

// Eval evaluates expr against rec, recursively evaluating Op children
// and dispatching through the opcode table (spec §4.X evaluation
// contract).
func Eval(expr *Expr, ctx Context, rec []byte) (Value, error) {
	switch expr.Kind {
	case KindConst:
		return expr.Const, nil

	case KindField:
		off, typ := expr.Offset, expr.Const.Type
		if off < 0 {
			var err error
			off, typ, err = ctx.ResolveField(expr.Target, expr.RoleID, expr.PropID)
			if err != nil {
				return Value{}, err
			}
		}
		v := readValue(rec[off:off+8], typ)
		if typ == record.TypeText && ctx.NeedText() {
			v.Text = ctx.ResolveText(v.Uint())
		}
		return v, nil

	case KindRef:
		return Eval(expr.Ref, ctx, rec)

	case KindAgg:
		return expr.Agg.Current(), nil

	case KindOp:
		info, ok := opcodeTable[expr.Op]
		if !ok || !info.Supported {
			return Value{}, nowerr.Sentinel(nowerr.NotSupported)
		}
		if expr.Op != OpIn && len(expr.Args) != info.Arity {
			return Value{}, nowerr.New(nowerr.Invalid, "nowexpr.Eval", info.Name, nil)
		}
		if expr.Op == OpIn {
			return evalIn(expr, ctx, rec)
		}
		args := make([]Value, len(expr.Args))
		for i, a := range expr.Args {
			v, err := Eval(a, ctx, rec)
			if err != nil {
				return Value{}, err
			}
			args[i] = v
		}
		return info.Apply(args)

	default:
		return Value{}, nowerr.New(nowerr.Panic, "nowexpr.Eval", "", nil)
	}
}

// evalIn evaluates the `in` operator: expr.Args[0] is the needle,
// expr.Args[1:] the haystack.
func evalIn(expr *Expr, ctx Context, rec []byte) (Value, error) {
	if len(expr.Args) < 2 {
		return Value{}, nowerr.New(nowerr.Invalid, "nowexpr.evalIn", "", nil)
	}
	needle, err := Eval(expr.Args[0], ctx, rec)
	if err != nil {
		return Value{}, err
	}
	for _, a := range expr.Args[1:] {
		v, err := Eval(a, ctx, rec)
		if err != nil {
			return Value{}, err
		}
		if valuesEqual(needle, v) {
			return BoolValue(true), nil
		}
	}
	return BoolValue(false), nil
}

// IsAgg reports whether expr is, or directly contains, an Agg node.
// An Agg nested more than one operator level deep is not detected.
func IsAgg(expr *Expr) bool {
	if expr.Kind == KindAgg {
		return true
	}
	for _, a := range expr.Args {
		if a.Kind == KindAgg {
			return true
		}
	}
	return false
}
