// Package nowexpr implements the Expression & Filter component of
// spec §4.X: a tagged-union expression tree, a static opcode table,
// evaluation against a record, and range extraction for index scans.
//
// The tagged union is a single struct keyed by Kind rather than an
// interface hierarchy, following spec §9's "sum type with exhaustive
// matching" guidance and the flat entity-struct style nowmodel
// already uses for Vertex/Edge/Property.
package nowexpr

import (
	"encoding/binary"
	"math"

	"github.com/toschoo/nowdb-go/record"
)

// Value is the 8-byte-slot result of evaluating an expression, with
// an optional resolved string alongside a text surrogate (spec §9
// "Text surrogates": the evaluator returns either a raw u64 surrogate
// or a resolved string depending on a needtxt flag).
type Value struct {
	Type  record.ValueType
	Bytes [8]byte
	Text  string // valid only when Type == TypeText and resolution was requested
}

func (v Value) Int() int64      { return int64(binary.LittleEndian.Uint64(v.Bytes[:])) }
func (v Value) Uint() uint64    { return binary.LittleEndian.Uint64(v.Bytes[:]) }
func (v Value) Float() float64  { return math.Float64frombits(binary.LittleEndian.Uint64(v.Bytes[:])) }
func (v Value) Bool() bool      { return v.Bytes[0] != 0 }

func IntValue(n int64) Value {
	var v Value
	v.Type = record.TypeInt
	binary.LittleEndian.PutUint64(v.Bytes[:], uint64(n))
	return v
}

func UintValue(n uint64) Value {
	var v Value
	v.Type = record.TypeUint
	binary.LittleEndian.PutUint64(v.Bytes[:], n)
	return v
}

func FloatValue(f float64) Value {
	var v Value
	v.Type = record.TypeFloat
	binary.LittleEndian.PutUint64(v.Bytes[:], math.Float64bits(f))
	return v
}

func BoolValue(b bool) Value {
	var v Value
	v.Type = record.TypeBool
	if b {
		v.Bytes[0] = 1
	}
	return v
}

func TextValue(key uint64, resolved string) Value {
	var v Value
	v.Type = record.TypeText
	binary.LittleEndian.PutUint64(v.Bytes[:], key)
	v.Text = resolved
	return v
}

func readValue(b []byte, t record.ValueType) Value {
	var v Value
	v.Type = t
	copy(v.Bytes[:], b[:8])
	return v
}
