package entity

import "time"

// ChannelStatus is the observable state of one channel after a tick.
// Fields which do not apply to the channel kind are nil.
type ChannelStatus struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Unit string `json:"unit,omitempty"`
	// Value is the reading in engineering units.
	Value     *float64 `json:"value,omitempty"`
	Requested *float64 `json:"requested,omitempty"`
	Soll      *float64 `json:"soll,omitempty"`
	Out       *float64 `json:"out,omitempty"`
	Display   *float64 `json:"display,omitempty"`
	State     string   `json:"state,omitempty"`
	Open      *bool    `json:"open,omitempty"`
	Inhibited bool     `json:"inhibited,omitempty"`
}

// RunStatus describes the active profile run.
type RunStatus struct {
	ID       string    `json:"id"`
	Profile  string    `json:"profile"`
	Started  time.Time `json:"started"`
	Segment  int       `json:"segment"`
	Segments int       `json:"segments"`
	// SegmentRemaining is the time left in the current segment, in seconds.
	SegmentRemaining float64 `json:"segment_remaining_s"`
	// RunTimeLeft is the time left before the run time limit, in seconds. Nil without limit.
	RunTimeLeft *float64 `json:"run_time_left_s,omitempty"`
}

// Snapshot is the state published after each tick. It is never mutated once published.
type Snapshot struct {
	Time           time.Time       `json:"time"`
	Tick           uint64          `json:"tick"`
	Run            *RunStatus      `json:"run,omitempty"`
	Recording      bool            `json:"recording"`
	LogDestination string          `json:"log_destination"`
	ProfileSource  string          `json:"profile_source"`
	Channels       []ChannelStatus `json:"channels"`
}
