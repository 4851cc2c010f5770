package entity

import "time"

type TargetKind int

const (
	// FixedTarget holds a single numeric setpoint for the whole segment.
	FixedTarget TargetKind = iota
	// RampTarget is interpolated linearly from Lower to Upper across the segment.
	RampTarget
	// LiteralTarget passes the cell content through unchanged.
	LiteralTarget
)

func (k TargetKind) String() string {
	switch k {
	case FixedTarget:
		return "fixed"
	case RampTarget:
		return "ramp"
	case LiteralTarget:
		return "literal"
	default:
		return "unknown"
	}
}

// Target is one cell of a segment row.
type Target struct {
	Kind  TargetKind
	Value float64
	Lower float64
	Upper float64
	Raw   string
}

func Fixed(v float64) Target {
	return Target{Kind: FixedTarget, Value: v}
}

func Ramp(lower, upper float64) Target {
	return Target{Kind: RampTarget, Lower: lower, Upper: upper}
}

func LiteralCell(raw string) Target {
	return Target{Kind: LiteralTarget, Raw: raw}
}

// At evaluates the target at progress p, which the caller clamps to [0,1].
func (t Target) At(p float64) Value {
	switch t.Kind {
	case FixedTarget:
		return Number(t.Value)
	case RampTarget:
		return Number(t.Lower + (t.Upper-t.Lower)*p)
	default:
		return Literal(t.Raw)
	}
}

// Segment is one data row of the profile.
type Segment struct {
	// Row is the 1-based row number in the source table.
	Row int
	// RawDuration is the duration cell in seconds, parsed when the segment is scheduled.
	RawDuration string
	// Targets maps channel name to target.
	Targets map[string]Target
}

/* Profile is the recipe of one run:
```
row 1: reserved (B1 optionally holds the run time in minutes)
row 2: duration | channel_1 | channel_2 | ...
row 4: 60       | 100-200   | 12,5      | ...
```
Data rows start at a configured row.
*/
type Profile struct {
	// Source is the path the profile was loaded from.
	Source string
	// Header holds the channel names in column order.
	Header []string
	// Segments in execution order.
	Segments []Segment
	// RunTime is the total run time limit. Zero means no limit.
	RunTime time.Duration
}

func (p Profile) Len() int {
	return len(p.Segments)
}
