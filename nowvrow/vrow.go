// Package nowvrow implements the VRow component of spec §4.V: a
// vertex's logical row is scattered across one physical record per
// property, all sharing the same (role, vid); VRow buckets those
// records back into one addressable row so the expression evaluator
// and the projector can treat a vertex like a normal fixed-layout
// record.
//
// There is no direct analog in the pack's document stores — they
// never scatter one logical entity across physical records — so the
// accumulator is built in the teacher's idiom: a small struct with an
// explicit add/complete state machine, the way folio's scan.go
// assembles a Result from repeated Entry reads.
package nowvrow

import (
	"github.com/toschoo/nowdb-go/nowerr"
	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/nowmodel"
	"github.com/toschoo/nowdb-go/record"
)

type slotMeta struct {
	off int
	typ record.ValueType
}

// VRow accumulates scattered vertex property records for one (role,
// vid) bucket at a time, exposing the assembled result once every
// declared slot has arrived.
type VRow struct {
	roleID uint32
	model  *nowmodel.Model
	base   nowexpr.Context
	filter *nowexpr.Expr

	slotIdx map[uint64]int // propID -> index into slots
	slots   []slotMeta

	rowSize int

	haveVID  bool
	curVID   uint64
	buf      []byte
	presence []byte
	present  int
}

// New creates an empty VRow for roleID, resolving property slots
// against model and delegating text resolution to ctx.
func New(roleID uint32, model *nowmodel.Model, ctx nowexpr.Context) *VRow {
	return &VRow{
		roleID:  roleID,
		model:   model,
		base:    ctx,
		slotIdx: make(map[uint64]int),
	}
}

// FromFilter builds a VRow and pre-declares every property the filter
// references, per spec §4.V's "VRows built fromFilter auto-derive the
// required property set from the filter's Field references".
func FromFilter(roleID uint32, model *nowmodel.Model, ctx nowexpr.Context, filter *nowexpr.Expr) *VRow {
	r := New(roleID, model, ctx)
	if filter != nil {
		r.AddExpr(filter)
		r.filter = filter
	}
	return r
}

// AddExpr walks expr and pre-declares every vertex Field it
// references, growing the assembled row to fit.
func (r *VRow) AddExpr(expr *nowexpr.Expr) {
	for _, f := range collectVertexFields(expr) {
		r.declare(f)
	}
}

func (r *VRow) declare(propID uint64) {
	if _, ok := r.slotIdx[propID]; ok {
		return
	}
	p, err := r.model.GetPropByID(propID)
	if err != nil {
		return
	}
	off := int(p.Off) * 8
	if need := off + 8; need > r.rowSize {
		r.rowSize = need
	}
	r.slotIdx[propID] = len(r.slots)
	r.slots = append(r.slots, slotMeta{off: off, typ: p.Value})
}

func collectVertexFields(expr *nowexpr.Expr) []uint64 {
	if expr == nil {
		return nil
	}
	var out []uint64
	switch expr.Kind {
	case nowexpr.KindField:
		if expr.Target == record.TargetVertex && expr.Offset < 0 {
			out = append(out, expr.PropID)
		}
	case nowexpr.KindOp:
		for _, a := range expr.Args {
			out = append(out, collectVertexFields(a)...)
		}
	case nowexpr.KindRef:
		out = append(out, collectVertexFields(expr.Ref)...)
	}
	return out
}

func (r *VRow) resetBucket(vid uint64) {
	r.curVID = vid
	r.haveVID = true
	r.present = 0
	if r.buf == nil || len(r.buf) != r.rowSize {
		r.buf = make([]byte, r.rowSize)
		r.presence = make([]byte, record.CtrlSize(len(r.slots)))
	} else {
		clear(r.buf)
		clear(r.presence)
	}
}

// Add appends one scattered vertex record to the current bucket,
// switching (and discarding any incomplete prior) bucket if rec
// carries a new vid. Returns accepted=true when rec named a role and
// property this VRow declared interest in.
func (r *VRow) Add(rec []byte) (accepted bool) {
	v := record.DecodeVertex(rec)
	if v.RoleID != r.roleID {
		return false
	}
	if !r.haveVID || v.VID != r.curVID {
		r.resetBucket(v.VID)
	}
	idx, ok := r.slotIdx[v.PropID]
	if !ok {
		return false
	}
	slot := r.slots[idx]
	copy(r.buf[slot.off:slot.off+8], v.Value[:])
	bit := byte(1) << uint(idx%8)
	if r.presence[idx/8]&bit == 0 {
		r.presence[idx/8] |= bit
		r.present++
	}
	return true
}

// VID returns the bucket currently being assembled.
func (r *VRow) VID() (uint64, bool) { return r.curVID, r.haveVID }

// Complete returns the assembled row once every declared slot has
// arrived for the current bucket.
func (r *VRow) Complete() (row []byte, presence []byte, size int, ok bool) {
	if !r.haveVID || r.present < len(r.slots) {
		return nil, nil, 0, false
	}
	return r.snapshot()
}

// Force returns the assembled row regardless of completeness, for the
// end-of-stream flush (spec §4.V invariant: "on forced flush at EOF").
func (r *VRow) Force() (row []byte, presence []byte, size int, ok bool) {
	if !r.haveVID {
		return nil, nil, 0, false
	}
	return r.snapshot()
}

func (r *VRow) snapshot() ([]byte, []byte, int, bool) {
	row := append([]byte(nil), r.buf...)
	pres := append([]byte(nil), r.presence...)
	return row, pres, r.rowSize, true
}

// Eval evaluates the attached filter against the current bucket,
// reporting the bucket's vid and whether the row satisfies the
// predicate. Only valid for a VRow built with FromFilter.
func (r *VRow) Eval() (vid uint64, ok bool, err error) {
	if r.filter == nil {
		return 0, false, nowerr.New(nowerr.Invalid, "nowvrow.Eval", "", nil)
	}
	v, err := nowexpr.Eval(r.filter, r, r.buf)
	if err != nil {
		return r.curVID, false, err
	}
	return r.curVID, v.Bool(), nil
}

// ResolveField implements nowexpr.Context over the assembled row's own
// slot layout rather than a single scattered record's.
func (r *VRow) ResolveField(target record.TargetKind, roleID uint32, propID uint64) (int, record.ValueType, error) {
	idx, ok := r.slotIdx[propID]
	if !ok {
		return 0, 0, nowerr.Sentinel(nowerr.KeyNotFound)
	}
	s := r.slots[idx]
	return s.off, s.typ, nil
}

// ResolveText and NeedText delegate to the outer evaluation context;
// text resolution is a Text-dictionary concern independent of how the
// row got assembled.
func (r *VRow) ResolveText(key uint64) string { return r.base.ResolveText(key) }
func (r *VRow) NeedText() bool                { return r.base.NeedText() }
