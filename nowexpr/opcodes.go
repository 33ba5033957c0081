package nowexpr

import (
	"math"
	"strings"
	"time"

	"github.com/toschoo/nowdb-go/record"
)

// Opcode identifies an Op expression's operator. Values are stable
// once assigned: spec §9 requires the opcode space to survive in
// serialized plans even for operators an implementation stubs out.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow

	OpAbs
	OpLog
	OpCeil
	OpFloor
	OpRound

	OpToInt
	OpToUint
	OpToFloat
	OpToTime

	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpIn

	OpAnd
	OpOr
	OpNot
	OpJust

	OpYear
	OpMonth
	OpDay
	OpHour
	OpMinute
	OpSecond

	OpSubstr
	OpLength
	OpConcat
	OpPos

	// Reserved, never implemented (spec §9 open question): bitwise
	// operators and opcodes beyond the listed string/time-extract set.
	OpRoot
)

// OpInfo is one opcode table entry: name, fixed arity, whether this
// build implements it, and the evaluator.
type OpInfo struct {
	Name      string
	Arity     int
	Supported bool
	Apply     func(args []Value) (Value, error)
}

func numeric(args []Value, fn func(a, b float64) float64) (Value, error) {
	a, b := toFloat(args[0]), toFloat(args[1])
	return FloatValue(fn(a, b)), nil
}

func toFloat(v Value) float64 {
	switch v.Type {
	case record.TypeFloat:
		return v.Float()
	case record.TypeInt:
		return float64(v.Int())
	case record.TypeUint:
		return float64(v.Uint())
	default:
		return 0
	}
}

func compare(args []Value, fn func(c int) bool) (Value, error) {
	a, b := args[0], args[1]
	var c int
	if a.Type == record.TypeText {
		c = strings.Compare(a.Text, b.Text)
	} else {
		fa, fb := toFloat(a), toFloat(b)
		switch {
		case fa < fb:
			c = -1
		case fa > fb:
			c = 1
		}
	}
	return BoolValue(fn(c)), nil
}

func epoch(v Value) time.Time {
	return time.Unix(v.Int(), 0).UTC()
}

var opcodeTable = map[Opcode]OpInfo{
	OpAdd: {"add", 2, true, func(a []Value) (Value, error) { return numeric(a, func(x, y float64) float64 { return x + y }) }},
	OpSub: {"sub", 2, true, func(a []Value) (Value, error) { return numeric(a, func(x, y float64) float64 { return x - y }) }},
	OpMul: {"mul", 2, true, func(a []Value) (Value, error) { return numeric(a, func(x, y float64) float64 { return x * y }) }},
	OpDiv: {"div", 2, true, func(a []Value) (Value, error) { return numeric(a, func(x, y float64) float64 { return x / y }) }},
	OpMod: {"mod", 2, true, func(a []Value) (Value, error) { return numeric(a, math.Mod) }},
	OpPow: {"pow", 2, true, func(a []Value) (Value, error) { return numeric(a, math.Pow) }},

	OpAbs:   {"abs", 1, true, func(a []Value) (Value, error) { return FloatValue(math.Abs(toFloat(a[0]))), nil }},
	OpLog:   {"log", 1, true, func(a []Value) (Value, error) { return FloatValue(math.Log(toFloat(a[0]))), nil }},
	OpCeil:  {"ceil", 1, true, func(a []Value) (Value, error) { return FloatValue(math.Ceil(toFloat(a[0]))), nil }},
	OpFloor: {"floor", 1, true, func(a []Value) (Value, error) { return FloatValue(math.Floor(toFloat(a[0]))), nil }},
	OpRound: {"round", 1, true, func(a []Value) (Value, error) { return FloatValue(math.Round(toFloat(a[0]))), nil }},

	OpToInt:   {"toint", 1, true, func(a []Value) (Value, error) { return IntValue(int64(toFloat(a[0]))), nil }},
	OpToUint:  {"touint", 1, true, func(a []Value) (Value, error) { return UintValue(uint64(toFloat(a[0]))), nil }},
	OpToFloat: {"tofloat", 1, true, func(a []Value) (Value, error) { return FloatValue(toFloat(a[0])), nil }},
	OpToTime:  {"totime", 1, true, func(a []Value) (Value, error) { return IntValue(int64(toFloat(a[0]))), nil }},

	OpEq: {"eq", 2, true, func(a []Value) (Value, error) { return compare(a, func(c int) bool { return c == 0 }) }},
	OpNe: {"ne", 2, true, func(a []Value) (Value, error) { return compare(a, func(c int) bool { return c != 0 }) }},
	OpLt: {"lt", 2, true, func(a []Value) (Value, error) { return compare(a, func(c int) bool { return c < 0 }) }},
	OpGt: {"gt", 2, true, func(a []Value) (Value, error) { return compare(a, func(c int) bool { return c > 0 }) }},
	OpLe: {"le", 2, true, func(a []Value) (Value, error) { return compare(a, func(c int) bool { return c <= 0 }) }},
	OpGe: {"ge", 2, true, func(a []Value) (Value, error) { return compare(a, func(c int) bool { return c >= 0 }) }},
	// OpIn has an arity of 1 here — the needle — because its haystack
	// is an arbitrary-length list; Eval special-cases OpIn to skip the
	// fixed-arity check and compare the needle against every remaining
	// arg instead of calling Apply.
	OpIn: {"in", 1, true, nil},

	OpAnd:  {"and", 2, true, func(a []Value) (Value, error) { return BoolValue(a[0].Bool() && a[1].Bool()), nil }},
	OpOr:   {"or", 2, true, func(a []Value) (Value, error) { return BoolValue(a[0].Bool() || a[1].Bool()), nil }},
	OpNot:  {"not", 1, true, func(a []Value) (Value, error) { return BoolValue(!a[0].Bool()), nil }},
	OpJust: {"just", 1, true, func(a []Value) (Value, error) { return a[0], nil }},

	OpYear:   {"year", 1, true, func(a []Value) (Value, error) { return IntValue(int64(epoch(a[0]).Year())), nil }},
	OpMonth:  {"month", 1, true, func(a []Value) (Value, error) { return IntValue(int64(epoch(a[0]).Month())), nil }},
	OpDay:    {"day", 1, true, func(a []Value) (Value, error) { return IntValue(int64(epoch(a[0]).Day())), nil }},
	OpHour:   {"hour", 1, true, func(a []Value) (Value, error) { return IntValue(int64(epoch(a[0]).Hour())), nil }},
	OpMinute: {"minute", 1, true, func(a []Value) (Value, error) { return IntValue(int64(epoch(a[0]).Minute())), nil }},
	OpSecond: {"second", 1, true, func(a []Value) (Value, error) { return IntValue(int64(epoch(a[0]).Second())), nil }},

	OpLength: {"length", 1, true, func(a []Value) (Value, error) { return IntValue(int64(len(a[0].Text))), nil }},
	OpConcat: {"concat", 2, true, func(a []Value) (Value, error) { return TextValue(0, a[0].Text+a[1].Text), nil }},
	OpPos: {"pos", 2, true, func(a []Value) (Value, error) {
		return IntValue(int64(strings.Index(a[0].Text, a[1].Text) + 1)), nil
	}},
	OpSubstr: {"substr", 3, true, func(a []Value) (Value, error) {
		s := a[0].Text
		start := int(a[1].Int())
		ln := int(a[2].Int())
		if start < 0 || start >= len(s) {
			return TextValue(0, ""), nil
		}
		end := start + ln
		if end > len(s) {
			end = len(s)
		}
		return TextValue(0, s[start:end]), nil
	}},

	OpRoot: {"root", 1, false, nil},
}

func valuesEqual(a, b Value) bool {
	if a.Type == record.TypeText || b.Type == record.TypeText {
		return a.Text == b.Text
	}
	return toFloat(a) == toFloat(b)
}
