package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/profile"
)

var (
	// ErrEndOfProfile signals that the last segment expired. It is not a failure.
	ErrEndOfProfile = errors.New("end of profile")
	// ErrInvalidDuration is wrapped by ScheduleParseError when a duration cell is not a positive number.
	ErrInvalidDuration = errors.New("invalid segment duration")
)

// ScheduleParseError reports a cell of the profile which cannot be scheduled.
type ScheduleParseError struct {
	Row  int
	Cell string
	Err  error
}

func (e *ScheduleParseError) Error() string {
	return fmt.Sprintf("row %d: cell %q: %v", e.Row, e.Cell, e.Err)
}

func (e *ScheduleParseError) Unwrap() error {
	return e.Err
}

// Policy tells the scheduler what to do when more than one segment expired between two calls.
type Policy int

const (
	// PolicySingle advances one segment per call and restarts the segment clock at now.
	PolicySingle Policy = iota
	// PolicyCatchUp carries the overshoot into the next segments until the cursor matches wall-clock time.
	PolicyCatchUp
)

func (p Policy) String() string {
	switch p {
	case PolicySingle:
		return "single"
	case PolicyCatchUp:
		return "catch-up"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return PolicySingle, nil
	case "catch-up", "catchup":
		return PolicyCatchUp, nil
	default:
		return PolicySingle, fmt.Errorf("unknown catch-up policy '%s'", s)
	}
}

// Cursor is the position of a run in its profile.
type Cursor struct {
	// Index of the current segment. It never decreases during a run.
	Index int
	// Start is the wall-clock time the current segment started.
	Start time.Time
}

// NewCursor returns the cursor of a run starting at now.
func NewCursor(now time.Time) Cursor {
	return Cursor{Start: now}
}

// Output is the result of one advance.
type Output struct {
	// Setpoints maps channel name to the value the channel should have now.
	Setpoints map[string]entity.Value
	// Cursor is the cursor to use for the next call.
	Cursor Cursor
	// Remaining is the time left in the evaluated segment. Negative when it expired.
	Remaining time.Duration
}

// Scheduler turns a profile and the wall clock into per-channel setpoints.
// It holds no run state: the cursor is owned by the caller.
type Scheduler struct {
	profile entity.Profile
	policy  Policy
}

func New(p entity.Profile, policy Policy) *Scheduler {
	return &Scheduler{profile: p, policy: policy}
}

func (s *Scheduler) Profile() entity.Profile {
	return s.profile
}

// Advance computes the setpoints of the segment under the cursor at now.
// When the segment expired the returned cursor points to the next segment.
// ErrEndOfProfile is returned instead of setpoints when the last segment expired,
// and for every later call with the same cursor.
func (s *Scheduler) Advance(c Cursor, now time.Time) (Output, error) {
	if c.Index >= s.profile.Len() {
		return Output{Cursor: c}, ErrEndOfProfile
	}

	segment := s.profile.Segments[c.Index]
	duration, err := s.duration(segment)
	if err != nil {
		return Output{Cursor: c}, err
	}

	elapsed := now.Sub(c.Start)
	remaining := duration - elapsed

	out := Output{
		Setpoints: evaluate(segment, elapsed, duration),
		Cursor:    c,
		Remaining: remaining,
	}

	if remaining >= 0 {
		return out, nil
	}

	next := Cursor{Index: c.Index + 1, Start: now}
	if s.policy == PolicyCatchUp {
		next = s.catchUp(Cursor{Index: c.Index + 1, Start: c.Start.Add(duration)}, now)
	}

	if next.Index >= s.profile.Len() {
		return Output{Cursor: c}, ErrEndOfProfile
	}

	out.Cursor = next

	return out, nil
}

// Skip moves the cursor past the current segment. It is used to step over a segment
// whose duration cannot be parsed.
func (s *Scheduler) Skip(c Cursor, now time.Time) (Cursor, error) {
	if c.Index+1 >= s.profile.Len() {
		return c, ErrEndOfProfile
	}
	return Cursor{Index: c.Index + 1, Start: now}, nil
}

// catchUp skips every segment which fully elapsed before now.
// It stops in front of a segment with an invalid duration so the next advance reports it.
func (s *Scheduler) catchUp(c Cursor, now time.Time) Cursor {
	for c.Index < s.profile.Len() {
		d, err := s.duration(s.profile.Segments[c.Index])
		if err != nil || now.Sub(c.Start) <= d {
			return c
		}
		c.Start = c.Start.Add(d)
		c.Index++
	}
	return c
}

func (s *Scheduler) duration(segment entity.Segment) (time.Duration, error) {
	seconds, err := profile.ParseFloat(segment.RawDuration)
	if err != nil {
		return 0, &ScheduleParseError{Row: segment.Row, Cell: segment.RawDuration, Err: fmt.Errorf("%w: %v", ErrInvalidDuration, err)}
	}
	if seconds <= 0 {
		return 0, &ScheduleParseError{Row: segment.Row, Cell: segment.RawDuration, Err: fmt.Errorf("%w: must be greater than zero", ErrInvalidDuration)}
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func evaluate(segment entity.Segment, elapsed, duration time.Duration) map[string]entity.Value {
	progress := float64(elapsed) / float64(duration)
	if progress < 0 {
		progress = 0
	} else if progress > 1 {
		progress = 1
	}

	setpoints := make(map[string]entity.Value, len(segment.Targets))
	for name, target := range segment.Targets {
		setpoints[name] = target.At(progress)
	}

	return setpoints
}
