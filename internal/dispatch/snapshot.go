package dispatch

import (
	"errors"
	"strconv"
	"time"

	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/recorder"
	"github.com/tupyy/rigctl/internal/registry"
)

// columns returns the log columns in configuration order. Setpoints with a read back value and
// controllers contribute a _Soll column and a second column with the actual value.
func columns(r *registry.Registry) []string {
	cols := make([]string, 0, r.Len())
	for _, c := range r.Channels() {
		switch b := c.Binding.(type) {
		case *registry.RawBinding:
			if b.HasInput() {
				cols = append(cols, c.Name+"_Soll", c.Name+"_Ist")
				continue
			}
			cols = append(cols, c.Name)
		case *registry.ControllerBinding:
			cols = append(cols, c.Name+"_Soll", c.Name+"_Output")
		default:
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// row returns the values matching columns. Controller outputs are logged in percent.
func (l *Loop) row() []string {
	values := make([]string, 0, len(l.columns))
	for _, c := range l.registry.Channels() {
		switch b := c.Binding.(type) {
		case *registry.RawBinding:
			values = append(values, formatOption(b.Requested))
			if b.HasInput() {
				values = append(values, formatOption(b.Measured))
			}
		case *registry.ControllerBinding:
			values = append(values, format(b.Controller.Soll()), format(b.Controller.Out()*100))
		case *registry.SensorBinding:
			values = append(values, formatOption(b.Value))
		case *registry.ValveBinding:
			values = append(values, format(b.Register()))
		}
	}
	return values
}

func (l *Loop) save(now time.Time) {
	if !l.recording {
		return
	}
	if !l.lastSave.IsZero() && now.Sub(l.lastSave) < l.options.SaveInterval {
		return
	}
	l.lastSave = now

	err := l.recorder.Write(now, l.columns, l.row())
	if err != nil {
		l.metrics.PersistenceError()
	}
	if errors.Is(err, recorder.ErrRetryPending) {
		return
	}
	l.report("save", err, "destination", l.recorder.Destination())
}

// publish builds the snapshot of this tick and hands it to the observers.
func (l *Loop) publish(now time.Time) {
	s := entity.Snapshot{
		Time:           now,
		Tick:           l.tick,
		Recording:      l.recording,
		LogDestination: l.recorder.Destination(),
		ProfileSource:  l.profiles.Source(),
		Channels:       make([]entity.ChannelStatus, 0, l.registry.Len()),
	}

	segment := 0
	if r := l.run; r != nil {
		segment = r.cursor.Index
		s.Run = &entity.RunStatus{
			ID:               r.id,
			Profile:          r.profile.Source,
			Started:          r.started,
			Segment:          r.cursor.Index,
			Segments:         r.profile.Len(),
			SegmentRemaining: r.remaining.Seconds(),
		}
		if r.profile.RunTime > 0 {
			s.Run.RunTimeLeft = ptr((r.profile.RunTime - now.Sub(r.started)).Seconds())
		}
	}

	for _, c := range l.registry.Channels() {
		status := entity.ChannelStatus{
			Name: c.Name,
			Kind: c.Binding.Kind().String(),
			Unit: c.Unit,
		}

		switch b := c.Binding.(type) {
		case *registry.RawBinding:
			status.Requested = optionPtr(b.Requested)
			status.Value = optionPtr(b.Measured)
		case *registry.ControllerBinding:
			status.Soll = ptr(b.Controller.Soll())
			status.Out = ptr(b.Controller.Out())
			status.Display = ptr(b.Display())
			status.State = b.Controller.State().String()
			status.Inhibited = l.inhibited[c.Name]
		case *registry.SensorBinding:
			status.Value = optionPtr(b.Value)
		case *registry.ValveBinding:
			open := b.Open
			status.Open = &open
		}

		s.Channels = append(s.Channels, status)
	}

	l.lock.Lock()
	l.snapshot = s
	l.lock.Unlock()

	l.metrics.Run(l.run != nil, segment)

	for _, o := range l.observers {
		o.Observe(s)
	}
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOption(o entity.Option[float64]) string {
	if o.None {
		return ""
	}
	return format(o.Value)
}

func ptr[T any](v T) *T {
	return &v
}

func optionPtr(o entity.Option[float64]) *float64 {
	if o.None {
		return nil
	}
	return ptr(o.Value)
}
