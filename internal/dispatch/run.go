package dispatch

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/history"
	"github.com/tupyy/rigctl/internal/registry"
	"github.com/tupyy/rigctl/internal/scheduler"
	"go.uber.org/zap"
)

const (
	reasonEndOfProfile = "end_of_profile"
	reasonRunTime      = "run_time"
	reasonStopped      = "stopped"
	reasonRestarted    = "restarted"
	reasonShutdown     = "shutdown"
)

// run is an active profile run.
type run struct {
	id        string
	profile   entity.Profile
	scheduler *scheduler.Scheduler
	cursor    scheduler.Cursor
	started   time.Time
	remaining time.Duration
	// columns are the channels the profile has a column for.
	columns map[string]bool
	// scheduled holds the last non-empty scheduled value per channel.
	scheduled map[string]entity.Value
	// edited are profile channels which got an operator target during the run.
	edited map[string]bool
}

func (r *run) record() history.Run {
	return history.Run{
		ID:       r.id,
		Profile:  r.profile.Source,
		Started:  r.started,
		Segments: r.profile.Len(),
	}
}

func (l *Loop) startRun(now time.Time, p entity.Profile) {
	if l.run != nil {
		l.stopRun(now, reasonRestarted)
	}

	r := &run{
		id:        uuid.New().String(),
		profile:   p,
		scheduler: scheduler.New(p, l.options.Policy),
		cursor:    scheduler.NewCursor(now),
		started:   now,
		columns:   make(map[string]bool, len(p.Header)),
		scheduled: make(map[string]entity.Value),
		edited:    make(map[string]bool),
	}

	for _, name := range p.Header {
		if _, ok := l.registry.Get(name); !ok {
			zap.S().Warnw("profile column has no channel", "run_id", r.id, "column", name)
			continue
		}
		r.columns[name] = true
		delete(l.held, name)
	}

	l.run = r
	l.recorder.NewRun()
	l.setRecording(true)

	if l.journal != nil {
		l.journal.Record(r.record())
	}

	zap.S().Infow("profile run started", "run_id", r.id, "profile", p.Source, "segments", p.Len(), "run_time", p.RunTime)
}

// stopRun ends the active run. Controllers are left as they are: the last scheduled targets
// become the operator targets unless the operator changed them during the run.
func (l *Loop) stopRun(now time.Time, reason string) {
	r := l.run
	if r == nil {
		return
	}

	for name, v := range r.scheduled {
		if r.edited[name] || l.held[name] {
			continue
		}
		c, ok := l.registry.Get(name)
		if !ok {
			continue
		}
		if _, isSensor := c.Binding.(*registry.SensorBinding); isSensor {
			continue
		}
		l.manual[name] = v
	}

	l.run = nil
	l.setRecording(false)

	if l.journal != nil {
		record := r.record()
		record.Ended = now
		record.Reason = reason
		record.LogFile = l.recorder.Destination()
		l.journal.Record(record)
	}

	zap.S().Infow("profile run stopped", "run_id", r.id, "reason", reason, "segment", r.cursor.Index, "duration", now.Sub(r.started))
}

// advance moves the active run forward and keeps the scheduled targets of this tick.
func (l *Loop) advance(now time.Time) {
	r := l.run

	if r.profile.RunTime > 0 && now.Sub(r.started) > r.profile.RunTime {
		l.stopRun(now, reasonRunTime)
		return
	}

	out, err := r.scheduler.Advance(r.cursor, now)
	if err != nil {
		var parseErr *scheduler.ScheduleParseError
		switch {
		case errors.Is(err, scheduler.ErrEndOfProfile):
			l.stopRun(now, reasonEndOfProfile)
		case errors.As(err, &parseErr):
			zap.S().Errorw("segment skipped", "run_id", r.id, "row", parseErr.Row, "duration", parseErr.Cell, "error", err)
			cursor, err := r.scheduler.Skip(r.cursor, now)
			if err != nil {
				l.stopRun(now, reasonEndOfProfile)
				return
			}
			r.cursor = cursor
		default:
			zap.S().Errorw("cannot advance profile", "run_id", r.id, "error", err)
		}
		return
	}

	for name, v := range out.Setpoints {
		if v.IsEmpty() || !r.columns[name] {
			continue
		}
		r.scheduled[name] = v
	}

	if out.Cursor.Index != r.cursor.Index {
		zap.S().Infow("profile segment started", "run_id", r.id, "segment", out.Cursor.Index, "row", r.profile.Segments[out.Cursor.Index].Row)
	}
	r.cursor = out.Cursor
	r.remaining = out.Remaining
}

func (l *Loop) setRecording(enabled bool) {
	if l.recording == enabled {
		return
	}
	l.recording = enabled
	zap.S().Infow("recording changed", "enabled", enabled, "destination", l.recorder.Destination())
}
