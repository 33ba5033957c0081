// Package nowplan implements the Planner of spec §4.P: it turns a
// well-typed query AST (produced by the out-of-scope DQL parser) into
// an ordered list of plan nodes the Cursor executes top to bottom.
//
// The ordered-node-list shape and keeping a standalone "Summary" node
// separate from the execution nodes follows plan/root.go and
// plan/output.go's split between a query's descriptive output and its
// runnable steps in the pack's analytical-engine example.
package nowplan

import "github.com/toschoo/nowdb-go/nowexpr"

// OrderField names one sort key and its direction.
type OrderField struct {
	Expr *nowexpr.Expr
	Desc bool
}

// ProjField names one projected output column.
type ProjField struct {
	Expr  *nowexpr.Expr
	Alias string
}

// Query is the external AST node the Planner accepts: `from` names a
// vertex type or edge type, `where` is already a compiled filter
// Expression, `select`/`group`/`order` name expression lists.
type Query struct {
	From    string
	Where   *nowexpr.Expr
	Select  []ProjField
	Group   []*nowexpr.Expr
	Order   []OrderField
	Aggregates []*nowexpr.Expr
}
