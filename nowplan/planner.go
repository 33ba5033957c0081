package nowplan

import (
	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/record"
)

// Build compiles q into an ordered Plan, resolving q.From against
// model (§4.P "Target resolution") and choosing a reader strategy via
// cat (§4.P "Index selection precedence").
func Build(q *Query, model *nowmodel.Model, cat Catalog) (*Plan, error) {
	target := record.TargetEdge
	if model.WhatIs(q.From) == nowmodel.KindVertex {
		target = record.TargetVertex
	}

	if err := validateProjection(q); err != nil {
		return nil, err
	}

	nodes := []Node{{Kind: NodeSummary, NodeCount: countNodes(q)}}

	readerNode, err := buildReaderNode(q, target, cat)
	if err != nil {
		return nil, err
	}
	nodes = append(nodes, readerNode)

	if q.Where != nil {
		nodes = append(nodes, Node{Kind: NodeFilter, Filter: q.Where})
	}
	if len(q.Order) > 0 {
		nodes = append(nodes, Node{Kind: NodeOrdering, Fields: q.Order})
	}
	if len(q.Group) > 0 {
		nodes = append(nodes, Node{Kind: NodeGrouping, Group: q.Group})
	}
	if len(q.Select) > 0 {
		nodes = append(nodes, Node{Kind: NodeProjection, Proj: q.Select})
	}
	if len(q.Aggregates) > 0 {
		nodes = append(nodes, Node{Kind: NodeAggregates, Aggregates: q.Aggregates})
	}

	return &Plan{Nodes: nodes}, nil
}

func countNodes(q *Query) int {
	n := 1 // reader
	if q.Where != nil {
		n++
	}
	if len(q.Order) > 0 {
		n++
	}
	if len(q.Group) > 0 {
		n++
	}
	if len(q.Select) > 0 {
		n++
	}
	if len(q.Aggregates) > 0 {
		n++
	}
	return n
}

func buildReaderNode(q *Query, target record.TargetKind, cat Catalog) (Node, error) {
	node := Node{Kind: NodeReader, Target: target, TargetName: q.From, Stype: StypeFS}

	if cat == nil {
		return node, nil
	}

	idx, bounds, ok := selectIndex(cat, target, q.From, q.Group, q.Order, q.Where)
	if !ok {
		return node, nil
	}
	node.Index = &idx
	node.PackedKeys = bounds

	switch {
	case isBareCount(q):
		node.Stype = StypeCrange
	case bounds == nil:
		// chosen via group/order prefix, not where — range scan, no
		// page-skipping bitmap mask needed.
		node.Stype = StypeFrange
	case allEqual(bounds):
		node.Stype = StypeSearch
	default:
		node.Stype = StypeFrange
	}
	return node, nil
}

func allEqual(bounds []nowexpr.Bound) bool {
	for _, b := range bounds {
		if b.Lo != b.Hi {
			return false
		}
	}
	return true
}

func isBareCount(q *Query) bool {
	if len(q.Select) != 0 || len(q.Group) != 0 {
		return false
	}
	if len(q.Aggregates) != 1 {
		return false
	}
	agg := q.Aggregates[0]
	return agg.Kind == nowexpr.KindAgg && agg.Agg != nil && agg.Agg.Kind == nowexpr.AggCount
}

// validateProjection enforces spec §4.P's grouped-query rule: every
// non-aggregate projected expression must equal (by field identity)
// the corresponding grouping expression, pairwise; every remaining
// projected expression must be an aggregate.
func validateProjection(q *Query) error {
	if len(q.Group) == 0 {
		return nil
	}
	for i, p := range q.Select {
		if p.Expr.Kind == nowexpr.KindAgg {
			continue
		}
		if i >= len(q.Group) || !sameField(p.Expr, q.Group[i]) {
			return nowerr.New(nowerr.Invalid, "nowplan.Build", "projection not key-equal to grouping", nil)
		}
	}
	return nil
}

func sameField(a, b *nowexpr.Expr) bool {
	if a.Kind != nowexpr.KindField || b.Kind != nowexpr.KindField {
		return false
	}
	return a.Target == b.Target && a.RoleID == b.RoleID && a.PropID == b.PropID && a.Offset == b.Offset
}
