package nowplan

import (
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/record"
)

// NodeKind discriminates one step of a Plan.
type NodeKind int

const (
	NodeSummary NodeKind = iota
	NodeReader
	NodeFilter
	NodeOrdering
	NodeGrouping
	NodeProjection
	NodeAggregates
)

// ReaderKind selects which nowreader strategy the Cursor opens for a
// NodeReader step, named after the original engine's reader-kind enum.
type ReaderKind int

const (
	StypeFS ReaderKind = iota
	StypeSearch
	StypeFrange
	StypeMrange
	StypeKrange
	StypeCrange
)

// Node is one tagged-union step in a Plan's ordered node list. Only
// the fields relevant to Kind are populated.
type Node struct {
	Kind NodeKind

	// Summary
	NodeCount   int
	Cardinality int64

	// Reader
	Stype       ReaderKind
	Target      record.TargetKind
	TargetName  string
	Index       *IndexDescriptor
	PackedKeys  []nowexpr.Bound

	// Filter
	Filter *nowexpr.Expr

	// Ordering / Grouping / Projection
	Fields []OrderField
	Group  []*nowexpr.Expr
	Proj   []ProjField

	// Aggregates
	Aggregates []*nowexpr.Expr
}

// Plan is the ordered list of Nodes a Cursor executes top to bottom.
type Plan struct {
	Nodes []Node
}
