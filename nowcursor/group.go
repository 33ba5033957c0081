package nowcursor

import (
	"bytes"

	"github.com/toschoo/nowdb-go/nowexpr"
)

// Group drives a query's GROUP BY and bare-aggregate accumulation. The
// Cursor detects a group switch by comparing each incoming record's
// key against the currently open group's key — the same key-change-
// detection shape the pack's tinySQL-style grouping scan uses over an
// already-ordered stream, applied here to NowDB's index-ordered reader
// output instead of a sorted in-memory table. Group itself only folds
// and snapshots; the Cursor owns the emit-on-switch decision so a
// finished group's aggregate values can be read before they're reset.
type Group struct {
	keys []*nowexpr.Expr
	aggs []*nowexpr.Expr
	ctx  nowexpr.Context

	haveKey bool
	curKey  []byte
	curRec  []byte
}

// NewGroup builds a grouping accumulator over keys (the GROUP BY
// expressions) and aggs (the Agg expressions reduced per group). Both
// may be empty — keys empty means a single whole-stream group (a bare
// aggregate query); aggs empty means DISTINCT-style grouping with no
// aggregate to reduce.
func NewGroup(keys, aggs []*nowexpr.Expr, ctx nowexpr.Context) *Group {
	return &Group{keys: keys, aggs: aggs, ctx: ctx}
}

// KeyOf evaluates this group's key expressions against rec.
func (g *Group) KeyOf(rec []byte) ([]byte, error) {
	if len(g.keys) == 0 {
		return nil, nil // single implicit group
	}
	var buf []byte
	for _, k := range g.keys {
		v, err := nowexpr.Eval(k, g.ctx, rec)
		if err != nil {
			return nil, err
		}
		buf = append(buf, v.Bytes[:]...)
	}
	return buf, nil
}

// Active reports whether a group is currently open.
func (g *Group) Active() bool { return g.haveKey }

// SameKey reports whether key matches the currently open group's key.
// Only meaningful when Active() is true.
func (g *Group) SameKey(key []byte) bool {
	return g.haveKey && bytes.Equal(key, g.curKey)
}

// Snapshot returns the representative record of the currently open
// group, for projecting its non-aggregate (key-equal) fields once the
// group is about to be replaced or force-flushed at EOF.
func (g *Group) Snapshot() ([]byte, bool) { return g.curRec, g.haveKey }

// Start closes out whatever group was open (the caller must already
// have read its values via Snapshot/Reduce) and opens a fresh one at
// key, folding rec as its first member.
func (g *Group) Start(key, rec []byte) error {
	for _, a := range g.aggs {
		if a.Kind == nowexpr.KindAgg {
			a.Agg.Reset()
		}
	}
	g.haveKey = true
	g.curKey = key
	g.curRec = rec
	return g.accumulate(rec)
}

// Accumulate folds rec into the currently open group without changing
// its key.
func (g *Group) Accumulate(rec []byte) error {
	g.curRec = rec
	return g.accumulate(rec)
}

func (g *Group) accumulate(rec []byte) error {
	for _, a := range g.aggs {
		if a.Kind == nowexpr.KindAgg {
			if err := a.Agg.Map(g.ctx, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// Reset discards the currently open group entirely (no emission), for
// after the Cursor has already produced its output row.
func (g *Group) Reset() {
	g.haveKey = false
	g.curKey = nil
	g.curRec = nil
}
