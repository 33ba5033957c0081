package nowexpr

// FieldKey identifies a Field expression uniquely enough to match it
// against an index's key offsets: (target, roleid, propid) for a
// Model-resolved field, or just the byte offset for a fixed one.
type FieldKey struct {
	Target int
	RoleID uint32
	PropID uint64
	Offset int
}

func fieldKeyOf(e *Expr) (FieldKey, bool) {
	if e.Kind != KindField {
		return FieldKey{}, false
	}
	return FieldKey{Target: int(e.Target), RoleID: e.RoleID, PropID: e.PropID, Offset: e.Offset}, true
}

// Bound is one key slot's extracted range: either a pinned equality
// (Lo == Hi) or a bracketed [Lo, Hi] from AND-joined comparisons.
type Bound struct {
	Lo, Hi Value
	Set    bool
}

// Range walks filter and extracts, for each key in keys (in order), a
// Bound — per spec §4.X "range extraction": returns ok=false unless
// every key slot is pinned by an `=` or bracketed by `>= lit AND <=
// lit`, i.e. the filter describes a contiguous range over the key
// prefix. Conjuncts on fields outside keys are ignored.
func Range(filter *Expr, keys []FieldKey) (bounds []Bound, ok bool) {
	bounds = make([]Bound, len(keys))
	conj := flattenAnd(filter)

	for i, k := range keys {
		b, found := boundFor(conj, k)
		if !found {
			return nil, false
		}
		bounds[i] = b
	}
	return bounds, true
}

// flattenAnd decomposes a top-level conjunction of ANDs into its leaf
// comparisons; anything joined by OR, NOT, or a non-comparison makes
// the whole filter unusable for range extraction (the caller already
// fails closed when the resulting leaves don't cover every key).
func flattenAnd(e *Expr) []*Expr {
	if e == nil {
		return nil
	}
	if e.Kind == KindOp && e.Op == OpAnd && len(e.Args) == 2 {
		return append(flattenAnd(e.Args[0]), flattenAnd(e.Args[1])...)
	}
	return []*Expr{e}
}

// boundFor collects every comparison against key in conj. It reports
// found only when both sides are set, by an `=` or by a `>=` together
// with a `<=`; a one-sided comparison alone does not bound the key.
func boundFor(conj []*Expr, key FieldKey) (Bound, bool) {
	var b Bound
	var haveLo, haveHi bool
	for _, leaf := range conj {
		if leaf.Kind != KindOp || len(leaf.Args) != 2 {
			continue
		}
		fk, isField := fieldKeyOf(leaf.Args[0])
		constExpr := leaf.Args[1]
		if !isField || constExpr.Kind != KindConst {
			continue
		}
		if fk != key {
			continue
		}
		v := constExpr.Const
		switch leaf.Op {
		case OpEq:
			b.Lo, b.Hi = v, v
			haveLo, haveHi = true, true
		case OpGe:
			b.Lo, haveLo = v, true
		case OpLe:
			b.Hi, haveHi = v, true
		}
	}
	if !haveLo || !haveHi {
		return Bound{}, false
	}
	b.Set = true
	return b, true
}
