package nowplan

import (
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowindex"
	"github.com/toschoo/nowdb-go/record"
)

// IndexDescriptor names one available index over a target: its key
// fields (in key order) and the underlying tree.
type IndexDescriptor struct {
	Name string
	Tree *nowindex.Tree
	Spec nowindex.KeySpec
	Keys []nowexpr.FieldKey // same order as Spec.Offsets/Widths
}

// Catalog resolves the indexes available over a target so the
// Planner can choose one without depending on nowscope or nowmodel
// directly.
type Catalog interface {
	IndexesFor(target record.TargetKind, targetName string) []IndexDescriptor
}

// selectIndex applies spec §4.P's precedence: group-by > order-by >
// where. It returns the chosen index and the bound key prefix it
// covers, or ok=false when no candidate fully covers any of the three
// field lists.
func selectIndex(cat Catalog, target record.TargetKind, targetName string, group []*nowexpr.Expr, order []OrderField, where *nowexpr.Expr) (IndexDescriptor, []nowexpr.Bound, bool) {
	candidates := cat.IndexesFor(target, targetName)
	if len(candidates) == 0 {
		return IndexDescriptor{}, nil, false
	}

	if idx, ok := matchFieldPrefix(candidates, exprKeys(group)); ok {
		return idx, nil, true
	}
	if idx, ok := matchOrderPrefix(candidates, order); ok {
		return idx, nil, true
	}
	return matchWhere(candidates, where)
}

func exprKeys(exprs []*nowexpr.Expr) []nowexpr.FieldKey {
	var keys []nowexpr.FieldKey
	for _, e := range exprs {
		if e.Kind != nowexpr.KindField {
			return nil // non-field grouping/ordering expr can't match an index prefix
		}
		keys = append(keys, nowexpr.FieldKey{Target: int(e.Target), RoleID: e.RoleID, PropID: e.PropID, Offset: e.Offset})
	}
	return keys
}

func matchFieldPrefix(candidates []IndexDescriptor, keys []nowexpr.FieldKey) (IndexDescriptor, bool) {
	if len(keys) == 0 {
		return IndexDescriptor{}, false
	}
	var best *IndexDescriptor
	for i := range candidates {
		c := &candidates[i]
		if len(c.Keys) < len(keys) {
			continue
		}
		match := true
		for j, k := range keys {
			if c.Keys[j] != k {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if best == nil || len(c.Keys) < len(best.Keys) {
			best = c
		}
	}
	if best == nil {
		return IndexDescriptor{}, false
	}
	return *best, true
}

func matchOrderPrefix(candidates []IndexDescriptor, order []OrderField) (IndexDescriptor, bool) {
	keys := make([]*nowexpr.Expr, 0, len(order))
	for _, o := range order {
		keys = append(keys, o.Expr)
	}
	return matchFieldPrefix(candidates, exprKeys(keys))
}

// matchWhere walks the filter's equality/range nodes and picks the
// candidate whose key prefix is fully covered by the filter,
// preferring the smallest covering key among ties.
func matchWhere(candidates []IndexDescriptor, where *nowexpr.Expr) (IndexDescriptor, []nowexpr.Bound, bool) {
	if where == nil {
		return IndexDescriptor{}, nil, false
	}
	var best *IndexDescriptor
	var bestBounds []nowexpr.Bound
	for i := range candidates {
		c := &candidates[i]
		bounds, ok := nowexpr.Range(where, c.Keys)
		if !ok {
			continue
		}
		if best == nil || c.Spec.Size() < best.Spec.Size() {
			best = c
			bestBounds = bounds
		}
	}
	if best == nil {
		return IndexDescriptor{}, nil, false
	}
	return *best, bestBounds, true
}
