// Package nowcursor implements the Cursor of spec §4.C: it ties a
// compiled Plan to a concrete Reader, runs the filter/group/aggregate/
// projection pipeline record by record, and serializes matching rows
// into a caller-supplied buffer using the wire format of spec §6.
package nowcursor

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/nowplan"
	"github.com/toschoo/nowdb-go/nowreader"
	"github.com/toschoo/nowdb-go/nowtext"
	"github.com/toschoo/nowdb-go/nowvrow"
	"github.com/toschoo/nowdb-go/record"
)

// maxEncodedRowSize bounds a single projected row's wire-framed size,
// enough for every fixed-width field plus one longtext up to its
// 16-bit length prefix's maximum.
const maxEncodedRowSize = 1 << 16

var fetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "nowdb_cursor_fetch_seconds",
	Help:    "Wall-clock duration of a single Cursor.Fetch call.",
	Buckets: prometheus.DefBuckets,
})

func init() {
	prometheus.MustRegister(fetchLatency)
}

// maskedReader is implemented by reader kinds (Mrange) whose current
// page may only be partially matched; Cursor consults it to skip
// slots the index leaf didn't actually select.
type maskedReader interface {
	Mask() []int
}

// vidPrefilterThreshold bounds how many matching vids the prefilter
// pass of spec §4.C will carry forward as a literal allow-set before
// treating the match as "large" and giving up the rewrite, per
// vidPrefilter's doc comment.
const vidPrefilterThreshold = 4096

// Cursor executes one compiled Plan against one opened Reader.
type Cursor struct {
	reader  nowreader.Reader
	target  record.TargetKind
	roleID  uint32
	recSize int

	base    *EvalContext
	evalCtx nowexpr.Context // base for edges, *nowvrow.VRow for vertices

	filter   *nowexpr.Expr
	vidAllow map[uint64]struct{} // set by vidPrefilter; nil when no rewrite applied
	group    *Group
	proj     *Row
	vrow     *nowvrow.VRow

	scan *slotScanner

	lastVID      uint64
	haveLastVID  bool
	forcedVRow   bool
	groupFlushed bool

	leftover []byte
	done     bool

	// pendingKey/pendingRec open the next group on the following
	// nextOutputRow call, after the prior group's row was projected.
	pendingKey, pendingRec []byte
	havePending            bool
}

// Open builds a Cursor executing plan's nodes against reader, which
// must already address the plan's resolved target. recSize is the
// fixed physical record size the reader's pages are packed with
// (record.VertexSize for a vertex target, the Model's computed edge
// record size for an edge target).
func Open(plan *nowplan.Plan, reader nowreader.Reader, model *nowmodel.Model, text *nowtext.Dict, recSize int) (*Cursor, error) {
	var readerNode nowplan.Node
	var filterExpr *nowexpr.Expr
	var groupExprs, aggExprs []*nowexpr.Expr
	var projFields []nowplan.ProjField

	for _, n := range plan.Nodes {
		switch n.Kind {
		case nowplan.NodeReader:
			readerNode = n
		case nowplan.NodeFilter:
			filterExpr = n.Filter
		case nowplan.NodeGrouping:
			groupExprs = n.Group
		case nowplan.NodeAggregates:
			aggExprs = n.Aggregates
		case nowplan.NodeProjection:
			projFields = n.Proj
		}
	}

	c := &Cursor{reader: reader, target: readerNode.Target, recSize: recSize}
	needText := projectionNeedsText(projFields)
	c.base = NewEvalContext(model, text, needText)
	c.filter = filterExpr

	if c.target == record.TargetVertex {
		v, err := model.GetVertexByName(readerNode.TargetName)
		if err != nil {
			return nil, err
		}
		c.roleID = v.RoleID
		c.vrow = nowvrow.FromFilter(c.roleID, model, c.base, filterExpr)
		for _, p := range projFields {
			c.vrow.AddExpr(p.Expr)
		}
		for _, g := range groupExprs {
			c.vrow.AddExpr(g)
		}
		for _, a := range aggExprs {
			if a.Agg != nil && a.Agg.Arg != nil {
				c.vrow.AddExpr(a.Agg.Arg)
			}
		}
		c.evalCtx = c.vrow
	} else {
		c.evalCtx = c.base
	}

	if err := reader.Open(); err != nil {
		return nil, err
	}
	c.scan = newSlotScanner(reader, c.target, recSize)

	if c.target == record.TargetVertex {
		if err := c.vidPrefilter(model, groupExprs, aggExprs, projFields); err != nil {
			reader.Close()
			return nil, err
		}
	}

	// Built last: Group/Row capture c.evalCtx (and, for vertices,
	// c.vrow through it) by reference, so they must see the final
	// context vidPrefilter may have swapped in, not the original one.
	if len(groupExprs) > 0 || len(aggExprs) > 0 {
		c.group = NewGroup(groupExprs, aggExprs, c.evalCtx)
	}
	if len(projFields) > 0 {
		c.proj = NewRow(projFields, c.evalCtx)
	}

	return c, nil
}

// vidPrefilter implements spec §4.C's vid-prefilter pass: when a
// vertex cursor's filter reaches beyond the primary key, a full pass
// over reader assembles each vertex through a throwaway VRow and
// evaluates the original filter, collecting the vids that pass into
// a set before reader is rewound for the real run.
//
// VRow's assembled buffer has no byte slot a "vid" Field expression
// could address (it only holds declared property slots), so the
// spec's "rewrite the main cursor's filter to role = r AND vid IN
// {...}" is applied directly against vrow.VID() in nextLogicalRow
// rather than as a literal Expr tree: c.filter is cleared and
// c.vidAllow becomes the membership set nextLogicalRow checks
// instead. Clearing the filter also lets c.vrow be rebuilt declaring
// only the projection/grouping/aggregate property slots — the
// filter's own fields no longer need to arrive before a bucket can be
// judged — which is the concrete win "per-vid searches" describes:
// the second pass no longer depends on the filtered-out properties at
// all.
//
// A match set larger than vidPrefilterThreshold is abandoned instead
// of carried forward as a literal allow-set (spec's "large" case,
// which names an mrange-with-presence-map reader instead) — this tree
// has no on-disk index keyed by vid to back a true point-lookup or
// masked-page reader, so the safe choice is to leave the original
// filter and full VRow in place rather than rewrite against a set
// that would cost more to hold and probe than the predicate itself.
func (c *Cursor) vidPrefilter(model *nowmodel.Model, groupExprs, aggExprs []*nowexpr.Expr, projFields []nowplan.ProjField) error {
	if c.filter == nil {
		return nil
	}
	pk, err := model.GetPK(c.roleID)
	if err != nil || !filterReferencesNonKey(c.filter, pk.PropID) {
		return nil
	}

	probe := nowvrow.FromFilter(c.roleID, model, c.base, c.filter)
	scan := newSlotScanner(c.reader, c.target, c.recSize)
	vids := make(map[uint64]struct{})
	overflow := false

	for {
		rec, err := scan.next()
		if err == io.EOF {
			if _, _, _, ok := probe.Force(); ok {
				if vid, pass, everr := probe.Eval(); everr != nil {
					return everr
				} else if pass {
					addVID(vids, vid, &overflow)
				}
			}
			break
		}
		if err != nil {
			return err
		}
		probe.Add(rec)
		if _, haveVID := probe.VID(); !haveVID {
			continue
		}
		if _, _, _, ok := probe.Complete(); !ok {
			continue
		}
		vid, pass, everr := probe.Eval()
		if everr != nil {
			return everr
		}
		if pass {
			addVID(vids, vid, &overflow)
		}
	}

	if err := c.reader.Rewind(); err != nil {
		return err
	}
	c.scan = newSlotScanner(c.reader, c.target, c.recSize)
	if overflow {
		return nil
	}

	vrow := nowvrow.New(c.roleID, model, c.base)
	for _, p := range projFields {
		vrow.AddExpr(p.Expr)
	}
	for _, g := range groupExprs {
		vrow.AddExpr(g)
	}
	for _, a := range aggExprs {
		if a.Agg != nil && a.Agg.Arg != nil {
			vrow.AddExpr(a.Agg.Arg)
		}
	}
	c.vrow = vrow
	c.evalCtx = vrow
	c.filter = nil
	c.vidAllow = vids
	return nil
}

func addVID(vids map[uint64]struct{}, vid uint64, overflow *bool) {
	if *overflow {
		return
	}
	if _, ok := vids[vid]; !ok && len(vids) >= vidPrefilterThreshold {
		*overflow = true
		return
	}
	vids[vid] = struct{}{}
}

// filterReferencesNonKey reports whether expr reads any vertex
// property other than pkPropID, the condition under which the
// unindexed full VRow scan in nextLogicalRow is worth short-circuiting
// with a vid-prefilter pass.
func filterReferencesNonKey(expr *nowexpr.Expr, pkPropID uint64) bool {
	if expr == nil {
		return false
	}
	switch expr.Kind {
	case nowexpr.KindField:
		return expr.Target == record.TargetVertex && expr.Offset < 0 && expr.PropID != pkPropID
	case nowexpr.KindOp:
		for _, a := range expr.Args {
			if filterReferencesNonKey(a, pkPropID) {
				return true
			}
		}
	case nowexpr.KindRef:
		return filterReferencesNonKey(expr.Ref, pkPropID)
	}
	return false
}

func projectionNeedsText(proj []nowplan.ProjField) bool {
	for _, p := range proj {
		if exprNeedsText(p.Expr) {
			return true
		}
	}
	return false
}

func exprNeedsText(expr *nowexpr.Expr) bool {
	if expr == nil {
		return false
	}
	switch expr.Kind {
	case nowexpr.KindField:
		return true // conservative: any field projected might be text-typed
	case nowexpr.KindOp:
		for _, a := range expr.Args {
			if exprNeedsText(a) {
				return true
			}
		}
	case nowexpr.KindRef:
		return exprNeedsText(expr.Ref)
	}
	return false
}

func isNullRecord(rec []byte, target record.TargetKind) bool {
	if target == record.TargetVertex {
		return record.DecodeVertex(rec).IsNull()
	}
	e := record.DecodeEdge(rec, 0)
	return e.IsNull()
}

// Fetch fills buf (reusing its backing array, starting at length 0)
// with as many complete wire-framed rows as fit, returning the filled
// slice and the number of rows it holds. A row too large to fit in
// an otherwise-empty buf is an error; a row that doesn't fit after
// some rows already landed is deferred as a leftover and flushed first
// on the next Fetch call. Fetch returns io.EOF once the underlying
// reader and every pending group/VRow flush are exhausted.
func (c *Cursor) Fetch(buf []byte) ([]byte, int, error) {
	start := time.Now()
	defer func() { fetchLatency.Observe(time.Since(start).Seconds()) }()

	out := buf[:0]
	count := 0

	if c.leftover != nil {
		if len(c.leftover) > cap(out) {
			return out, 0, nowerr.New(nowerr.Invalid, "nowcursor.Fetch", "buffer too small for pending row", nil)
		}
		out = append(out, c.leftover...)
		count++
		c.leftover = nil
	}
	if c.done {
		if count > 0 {
			return out, count, nil
		}
		return out, count, io.EOF
	}

	for {
		rec, err := c.nextOutputRow()
		if err == io.EOF {
			c.done = true
			if count == 0 {
				return out, count, io.EOF
			}
			return out, count, nil
		}
		if err != nil {
			return out, count, err
		}

		if c.proj == nil {
			count++
			continue
		}
		grown, fits := c.proj.Encode(rec, out)
		if fits {
			out = grown
			count++
			continue
		}
		leftBuf := make([]byte, 0, maxEncodedRowSize)
		encoded, ok := c.proj.Encode(rec, leftBuf)
		if !ok {
			return out, count, nowerr.New(nowerr.Invalid, "nowcursor.Fetch", "row exceeds maximum encoded size", nil)
		}
		c.leftover = encoded
		if count == 0 {
			return out, 0, nowerr.New(nowerr.Invalid, "nowcursor.Fetch", "buffer too small for pending row", nil)
		}
		return out, count, nil
	}
}

// nextOutputRow returns the next row that has passed the filter and,
// when grouping is active, represents a just-closed group — i.e. the
// unit Fetch projects one wire-framed row from.
func (c *Cursor) nextOutputRow() ([]byte, error) {
	if c.havePending {
		c.havePending = false
		if err := c.group.Start(c.pendingKey, c.pendingRec); err != nil {
			return nil, err
		}
	}
	for {
		rec, ctx, err := c.nextLogicalRow()
		if err == io.EOF {
			if c.group != nil && !c.groupFlushed {
				if prevRec, active := c.group.Snapshot(); active {
					c.groupFlushed = true
					return prevRec, nil
				}
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		if c.filter != nil {
			v, ferr := nowexpr.Eval(c.filter, ctx, rec)
			if ferr != nil {
				return nil, ferr
			}
			if !v.Bool() {
				continue
			}
		}

		if c.group == nil {
			return rec, nil
		}

		key, kerr := c.group.KeyOf(rec)
		if kerr != nil {
			return nil, kerr
		}
		if !c.group.Active() {
			if err := c.group.Start(key, rec); err != nil {
				return nil, err
			}
			continue
		}
		if c.group.SameKey(key) {
			if err := c.group.Accumulate(rec); err != nil {
				return nil, err
			}
			continue
		}
		prevRec, _ := c.group.Snapshot()
		c.pendingKey, c.pendingRec, c.havePending = key, rec, true
		return prevRec, nil
	}
}

// nextLogicalRow returns the next record ready for filter evaluation:
// the raw physical record itself for an edge target, or a freshly
// completed (or EOF-forced) VRow bucket for a vertex target, paired
// with the Context it must be evaluated against.
func (c *Cursor) nextLogicalRow() ([]byte, nowexpr.Context, error) {
	for {
		prec, err := c.nextPhysicalRecord()
		if err == io.EOF {
			if c.target != record.TargetVertex || c.forcedVRow {
				return nil, nil, io.EOF
			}
			c.forcedVRow = true
			row, _, size, ok := c.vrow.Force()
			if !ok {
				return nil, nil, io.EOF
			}
			vid, _ := c.vrow.VID()
			if c.haveLastVID && vid == c.lastVID {
				return nil, nil, io.EOF
			}
			c.lastVID, c.haveLastVID = vid, true
			if c.vidAllow != nil {
				if _, allowed := c.vidAllow[vid]; !allowed {
					return nil, nil, io.EOF
				}
			}
			return row[:size], c.vrow, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if c.target != record.TargetVertex {
			return prec, c.base, nil
		}

		c.vrow.Add(prec)
		vid, haveVID := c.vrow.VID()
		if !haveVID {
			continue
		}
		row, _, size, ok := c.vrow.Complete()
		if !ok {
			continue
		}
		if c.haveLastVID && vid == c.lastVID {
			continue
		}
		c.lastVID, c.haveLastVID = vid, true
		if c.vidAllow != nil {
			if _, allowed := c.vidAllow[vid]; !allowed {
				continue
			}
		}
		return row[:size], c.vrow, nil
	}
}

// nextPhysicalRecord walks the reader's pages one fixed-size slot at a
// time via c.scan, skipping all-zero (null) slots and, for a masked
// reader, slots the index leaf's bitmap didn't select.
func (c *Cursor) nextPhysicalRecord() ([]byte, error) {
	return c.scan.next()
}

// slotScanner walks a Reader's pages one fixed-size physical slot at a
// time, the iteration logic the main Cursor loop and the vid-prefilter
// pass (which scans the same reader once before rewinding it) share.
type slotScanner struct {
	reader  nowreader.Reader
	target  record.TargetKind
	recSize int

	page    []byte
	slots   []int
	slotPos int
}

func newSlotScanner(reader nowreader.Reader, target record.TargetKind, recSize int) *slotScanner {
	return &slotScanner{reader: reader, target: target, recSize: recSize}
}

func (s *slotScanner) next() ([]byte, error) {
	for {
		if s.slotPos >= len(s.slots) {
			if err := s.loadSlots(); err != nil {
				return nil, err
			}
			continue
		}
		off := s.slots[s.slotPos]
		s.slotPos++
		rec := s.page[off : off+s.recSize]
		if isNullRecord(rec, s.target) {
			continue
		}
		return rec, nil
	}
}

func (s *slotScanner) loadSlots() error {
	if err := s.reader.Move(); err != nil {
		return err
	}
	s.page = s.reader.Page()
	s.slotPos = 0
	if s.page == nil {
		s.slots = nil
		return nil
	}
	if m, ok := s.reader.(maskedReader); ok {
		if mask := m.Mask(); mask != nil {
			slots := make([]int, len(mask))
			for i, idx := range mask {
				slots[i] = idx * s.recSize
			}
			s.slots = slots
			return nil
		}
	}
	n := len(s.page) / s.recSize
	slots := make([]int, n)
	for i := 0; i < n; i++ {
		slots[i] = i * s.recSize
	}
	s.slots = slots
	return nil
}

// Close releases the underlying reader.
func (c *Cursor) Close() error {
	return c.reader.Close()
}
