package nowcursor

import (
	"encoding/binary"
	"math"

	"github.com/toschoo/nowdb-go/nowexpr"
	"github.com/toschoo/nowdb-go/record"
)

// Wire type tags, per spec §6's row-framing format: one tag byte
// precedes every field's payload, and EOROW terminates a row.
const (
	TagNothing  byte = 0
	TagText     byte = 1
	TagDate     byte = 2
	TagTime     byte = 3
	TagFloat    byte = 4
	TagInt      byte = 5
	TagUint     byte = 6
	TagComplex  byte = 7
	TagLongtext byte = 8
	TagBool     byte = 9

	EOROW byte = 0x0A
)

// tagFor maps a value's type (and, for text, whether it resolved to a
// string) to its wire tag.
func tagFor(v nowexpr.Value) byte {
	switch v.Type {
	case record.TypeText:
		if v.Text != "" {
			return TagLongtext
		}
		return TagText
	case record.TypeDate:
		return TagDate
	case record.TypeTime:
		return TagTime
	case record.TypeFloat:
		return TagFloat
	case record.TypeInt:
		return TagInt
	case record.TypeUint:
		return TagUint
	case record.TypeBool:
		return TagBool
	default:
		return TagNothing
	}
}

// encodeValue appends v's wire tag and payload to buf, returning the
// grown slice and false if buf's backing capacity can't hold it (the
// caller is expected to retry against a fresh/larger buffer, not to
// grow this one — wire rows must land in caller-supplied fixed pages).
func encodeValue(buf []byte, v nowexpr.Value) ([]byte, bool) {
	tag := tagFor(v)
	need := 1
	var payload []byte
	switch tag {
	case TagNothing:
		// tag only
	case TagText:
		payload = make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, v.Uint())
		need += 8
	case TagLongtext:
		payload = append([]byte(nil), v.Text...)
		need += 2 + len(payload)
	case TagBool:
		payload = []byte{0}
		if v.Bool() {
			payload[0] = 1
		}
		need += 1
	default: // date, time, float, int, uint, complex
		payload = make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, binary.LittleEndian.Uint64(v.Bytes[:]))
		need += 8
	}
	if len(buf)+need > cap(buf) {
		return buf, false
	}
	buf = append(buf, tag)
	if tag == TagLongtext {
		var lb [2]byte
		binary.LittleEndian.PutUint16(lb[:], uint16(len(payload)))
		buf = append(buf, lb[:]...)
	}
	buf = append(buf, payload...)
	return buf, true
}

// decodeValue reads one tagged field starting at buf[0], returning the
// number of bytes consumed.
func decodeValue(buf []byte) (nowexpr.Value, int) {
	tag := buf[0]
	switch tag {
	case TagNothing:
		return nowexpr.Value{}, 1
	case TagText:
		key := binary.LittleEndian.Uint64(buf[1:9])
		return nowexpr.TextValue(key, ""), 9
	case TagLongtext:
		n := int(binary.LittleEndian.Uint16(buf[1:3]))
		s := string(buf[3 : 3+n])
		return nowexpr.Value{Type: record.TypeText, Text: s}, 3 + n
	case TagBool:
		return nowexpr.BoolValue(buf[1] != 0), 2
	case TagFloat:
		bits := binary.LittleEndian.Uint64(buf[1:9])
		return nowexpr.FloatValue(math.Float64frombits(bits)), 9
	case TagUint:
		return nowexpr.UintValue(binary.LittleEndian.Uint64(buf[1:9])), 9
	default: // date, time, int, complex — stored as raw 8-byte int slots
		return nowexpr.IntValue(int64(binary.LittleEndian.Uint64(buf[1:9]))), 9
	}
}
