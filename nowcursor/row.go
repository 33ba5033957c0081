package nowcursor

import (
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowplan"
)

// Row projects one query's select list against a record, producing a
// wire-framed row (spec §6): one tagged field per projected
// expression, terminated by EOROW.
type Row struct {
	proj []nowplan.ProjField
	ctx  nowexpr.Context
}

// NewRow builds a projector for proj, evaluating every expression
// against ctx.
func NewRow(proj []nowplan.ProjField, ctx nowexpr.Context) *Row {
	return &Row{proj: proj, ctx: ctx}
}

// Encode evaluates every projected expression against rec and appends
// its wire-framed form to out. out's length grows by the row's
// encoded size; out's capacity bounds how much fits (a caller-supplied
// fixed page). Encode either commits the whole row or none of it: on
// a too-small remainder it returns out unchanged and ok=false so the
// caller can flush the page and retry this same row against a fresh
// buffer (the "leftover row" deferral of spec §4.C's Fetch contract).
func (r *Row) Encode(rec []byte, out []byte) ([]byte, bool) {
	cur := out
	for _, p := range r.proj {
		v, err := nowexpr.Eval(p.Expr, r.ctx, rec)
		if err != nil {
			return out, false
		}
		grown, ok := encodeValue(cur, v)
		if !ok {
			return out, false
		}
		cur = grown
	}
	if len(cur)+1 > cap(cur) {
		return out, false
	}
	cur = append(cur, EOROW)
	return cur, true
}
