// Package record defines the two fixed-size binary record families
// that live inside NowDB's 8KiB pages — edge records and vertex
// records — and the byte offsets every other component (expression
// evaluator, index, planner) addresses them by.
//
// Offsets are compile-time constants rather than looked up at
// runtime, mirroring how the teacher package reads its `idx`/`_id`
// fields at fixed byte positions instead of parsing JSON for hot-path
// decisions (see record.go's `label`/`scanm` in the reference corpus).
package record

import "encoding/binary"

// Edge record offsets, per spec §6. Weight/Weight2 are typed 8-byte
// slots whose interpretation (int, float, uint) comes from the Model.
const (
	Origin  = 0
	Destin  = 8
	EdgeCol = 16
	Label   = 24
	Tmstmp  = 32
	Weight  = 40
	Weight2 = 48

	// EdgeFixedSize is the byte size of the fixed portion, before the
	// per-attribute control bitmap that follows it.
	EdgeFixedSize = 56
)

// Vertex record offsets, per spec §6.
const (
	Role      = 0
	VertexCol = 4
	Prop      = 12
	Value     = 20
	Vtype     = 28

	// VertexSize is the fixed 32-byte size of a vertex record.
	VertexSize = 32
)

// ValueType tags the 8-byte Value slot of a vertex record, or a
// Weight/Weight2 slot of an edge record.
type ValueType byte

const (
	TypeNothing ValueType = iota
	TypeText              // surrogate key into the text dictionary
	TypeDate
	TypeTime
	TypeFloat
	TypeInt
	TypeUint
	TypeBool
)

// CtrlSize returns the byte size of the presence/null control bitmap
// for n attributes — one bit per attribute, rounded up to a byte,
// matching the "control-block size" derivation of spec §3/§4.M.
func CtrlSize(n int) int {
	return (n + 7) / 8
}

// EdgeRecordSize returns the total on-disk size of an edge record
// with the given attribute count, per spec §4.M: recordsize = fixed
// header + ctrlSize(attrs).
func EdgeRecordSize(attrs int) int {
	return EdgeFixedSize + CtrlSize(attrs)
}

// Vertex is the decoded form of a 32-byte vertex record.
type Vertex struct {
	RoleID uint32
	VID    uint64
	PropID uint64
	Value  [8]byte
	VType  ValueType
	Ctrl   byte // presence/null bit for this single property
}

// IsNull reports whether the record is an all-zero slot — the page
// terminator convention of spec §3.
func (v Vertex) IsNull() bool {
	return v.RoleID == 0 && v.VID == 0 && v.PropID == 0 && v.Value == [8]byte{}
}

// EncodeVertex packs v into a VertexSize-byte slot.
func EncodeVertex(v Vertex) [VertexSize]byte {
	var b [VertexSize]byte
	binary.LittleEndian.PutUint32(b[Role:], v.RoleID)
	binary.LittleEndian.PutUint64(b[VertexCol:], v.VID)
	binary.LittleEndian.PutUint64(b[Prop:], v.PropID)
	copy(b[Value:Value+8], v.Value[:])
	b[Vtype] = byte(v.VType)
	b[Vtype+1] = v.Ctrl
	return b
}

// DecodeVertex unpacks a VertexSize-byte slot.
func DecodeVertex(b []byte) Vertex {
	var v Vertex
	v.RoleID = binary.LittleEndian.Uint32(b[Role:])
	v.VID = binary.LittleEndian.Uint64(b[VertexCol:])
	v.PropID = binary.LittleEndian.Uint64(b[Prop:])
	copy(v.Value[:], b[Value:Value+8])
	v.VType = ValueType(b[Vtype])
	v.Ctrl = b[Vtype+1]
	return v
}

// Edge is the decoded form of a variable-size (EdgeFixedSize+ctrl)
// edge record.
type Edge struct {
	OriginID uint64
	DestinID uint64
	EdgeID   uint64
	LabelID  uint64
	Stamp    int64 // grain-dependent timestamp, see nowfile.Grain
	Weight   [8]byte
	Weight2  [8]byte
	Ctrl     []byte // presence bitmap, CtrlSize(attrs) bytes
}

// IsNull reports whether the record is an all-zero slot.
func (e Edge) IsNull() bool {
	return e.OriginID == 0 && e.DestinID == 0 && e.EdgeID == 0 && e.LabelID == 0
}

// EncodeEdge packs e into a buffer of EdgeRecordSize(attrs) bytes.
// The caller-supplied buf must already be sized; EncodeEdge does not
// allocate so that Store.insert can reuse a scratch buffer per write.
func EncodeEdge(e Edge, attrs int, buf []byte) {
	size := EdgeRecordSize(attrs)
	if len(buf) < size {
		panic("record: buffer too small for EncodeEdge")
	}
	binary.LittleEndian.PutUint64(buf[Origin:], e.OriginID)
	binary.LittleEndian.PutUint64(buf[Destin:], e.DestinID)
	binary.LittleEndian.PutUint64(buf[EdgeCol:], e.EdgeID)
	binary.LittleEndian.PutUint64(buf[Label:], e.LabelID)
	binary.LittleEndian.PutUint64(buf[Tmstmp:], uint64(e.Stamp))
	copy(buf[Weight:Weight+8], e.Weight[:])
	copy(buf[Weight2:Weight2+8], e.Weight2[:])
	ctrl := buf[EdgeFixedSize:size]
	clear(ctrl)
	copy(ctrl, e.Ctrl)
}

// DecodeEdge unpacks an edge record of the given attribute count.
func DecodeEdge(b []byte, attrs int) Edge {
	var e Edge
	e.OriginID = binary.LittleEndian.Uint64(b[Origin:])
	e.DestinID = binary.LittleEndian.Uint64(b[Destin:])
	e.EdgeID = binary.LittleEndian.Uint64(b[EdgeCol:])
	e.LabelID = binary.LittleEndian.Uint64(b[Label:])
	e.Stamp = int64(binary.LittleEndian.Uint64(b[Tmstmp:]))
	copy(e.Weight[:], b[Weight:Weight+8])
	copy(e.Weight2[:], b[Weight2:Weight2+8])
	size := EdgeRecordSize(attrs)
	e.Ctrl = append([]byte(nil), b[EdgeFixedSize:size]...)
	return e
}

// TargetKind distinguishes whether a planner/expression Field targets
// an edge context or a vertex store.
type TargetKind int

const (
	TargetEdge TargetKind = iota
	TargetVertex
)
