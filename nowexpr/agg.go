package nowexpr

// AggKind selects an aggregate's accumulation rule.
type AggKind int

const (
	AggCount AggKind = iota
	AggSum
	AggAvg
	AggMin
	AggMax
)

// Aggregate is the side-effecting accumulator behind an Agg
// expression: evaluating it returns the current accumulator value;
// the cursor's group engine drives accumulation via Map and finalizes
// via Reduce once a group is complete (spec §4.X "Aggregates are
// side-effecting").
type Aggregate struct {
	Kind AggKind
	Arg  *Expr // nil for count(*)

	count int64
	sum   float64
	min   float64
	max   float64
	set   bool
}

// Map folds one row into the accumulator.
func (a *Aggregate) Map(ctx Context, rec []byte) error {
	var x float64
	if a.Arg != nil {
		v, err := Eval(a.Arg, ctx, rec)
		if err != nil {
			return err
		}
		x = toFloat(v)
	}
	a.count++
	a.sum += x
	if !a.set || x < a.min {
		a.min = x
	}
	if !a.set || x > a.max {
		a.max = x
	}
	a.set = true
	return nil
}

// Current returns the accumulator's present value without resetting
// it, used when an Agg expression is evaluated mid-group (e.g. a
// running total in a projection).
func (a *Aggregate) Current() Value {
	return a.Reduce()
}

// Reduce finalizes the accumulator into its result Value.
func (a *Aggregate) Reduce() Value {
	switch a.Kind {
	case AggCount:
		return IntValue(a.count)
	case AggSum:
		return FloatValue(a.sum)
	case AggAvg:
		if a.count == 0 {
			return FloatValue(0)
		}
		return FloatValue(a.sum / float64(a.count))
	case AggMin:
		return FloatValue(a.min)
	default:
		return FloatValue(a.max)
	}
}

// Reset clears the accumulator for the next group (spec §8 invariant
// 6's group.map/group.reduce cadence: one Reduce per group, then a
// fresh accumulation starts).
func (a *Aggregate) Reset() {
	a.count, a.sum, a.min, a.max, a.set = 0, 0, 0, 0, false
}
