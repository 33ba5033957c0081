// Grain definitions for timestamp interpretation and block pruning.
//
// Supplemented from original_source/src/nowdb/io/file.c, which stores
// a file's timestamp granularity (NOWDB_TIME_DAY down to
// NOWDB_TIME_USEC) alongside its [oldest,newest] bounds so that the
// block-header range check in move() compares apples to apples
// regardless of what unit the caller's query bounds are expressed in.
package nowfile

// Grain is the unit one tick of a file's timestamp column represents.
type Grain int64

const (
	GrainYear Grain = iota
	GrainMonth
	GrainDay
	GrainHour
	GrainMinute
	GrainSecond
	GrainMilli
	GrainMicro
)

// dawn and dusk are the sentinel bounds meaning "unbounded" in a
// [from,to] query period, per spec §4.F step 2 ("both bounds are not
// dawn/dusk").
const (
	Dawn int64 = 0
	Dusk int64 = 1<<63 - 1
)

// Microsecond divisors used by Normalize to convert an absolute
// microsecond-epoch timestamp down to one tick of each grain, mirroring
// original_source's file.c grain table (year/month use the calendar
// average length, which is the same approximation file.c makes).
const (
	usecPerMicro  int64 = 1
	usecPerMilli  int64 = 1000
	usecPerSecond int64 = 1_000_000
	usecPerMinute int64 = 60 * usecPerSecond
	usecPerHour   int64 = 60 * usecPerMinute
	usecPerDay    int64 = 24 * usecPerHour
	usecPerMonth  int64 = 30 * usecPerDay
	usecPerYear   int64 = 365 * usecPerDay
)

// Normalize converts an absolute microsecond-epoch timestamp t into
// this grain's units, i.e. the unit a record's own TMSTMP column is
// stored in for a file created with this grain. Dawn and Dusk pass
// through unchanged since they are sentinels for "unbounded", not
// timestamps, in either grain.
func (g Grain) Normalize(t int64) int64 {
	if t == Dawn || t == Dusk {
		return t
	}
	switch g {
	case GrainYear:
		return t / usecPerYear
	case GrainMonth:
		return t / usecPerMonth
	case GrainDay:
		return t / usecPerDay
	case GrainHour:
		return t / usecPerHour
	case GrainMinute:
		return t / usecPerMinute
	case GrainSecond:
		return t / usecPerSecond
	case GrainMilli:
		return t / usecPerMilli
	default: // GrainMicro
		return t / usecPerMicro
	}
}

// Disjoint reports whether a block's [from,to] timestamp range (in
// the file's own grain) cannot possibly intersect the query period
// [qfrom,qto], which must already be normalized to that same grain —
// callers (File.Intersects, Cursor.Move) do so via Grain.Normalize
// before calling Disjoint.
func Disjoint(from, to, qfrom, qto int64) bool {
	if qfrom == Dawn && qto == Dusk {
		return false
	}
	if qto != Dusk && from > qto {
		return true
	}
	if qfrom != Dawn && to < qfrom {
		return true
	}
	return false
}
