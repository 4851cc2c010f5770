package dispatch

import (
	"context"
	"time"

	"github.com/tupyy/rigctl/internal/device"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/registry"
	"go.uber.org/zap"
)

// reading is the outcome of a register read. A register is read at most once per tick.
type reading struct {
	value float64
	err   error
}

// target returns the value a channel follows: the scheduled value while the active run has a
// column for the channel, the operator target otherwise.
func (l *Loop) target(name string) (entity.Value, bool) {
	if l.run != nil && l.run.columns[name] {
		v, ok := l.run.scheduled[name]
		return v, ok
	}
	v, ok := l.manual[name]
	return v, ok
}

func (l *Loop) route() {
	for _, c := range l.registry.Channels() {
		if _, isSensor := c.Binding.(*registry.SensorBinding); isSensor {
			continue
		}
		if l.held[c.Name] {
			continue
		}

		v, ok := l.target(c.Name)
		if !ok {
			continue
		}

		err := l.registry.Route(c.Name, v)
		l.report("route/"+c.Name, err, "channel", c.Name, "value", v.String())
	}
}

func (l *Loop) stepControllers(ctx context.Context, now time.Time, reads map[entity.Port]reading) {
	values := l.registry.Values()

	for _, c := range l.registry.Channels() {
		b, ok := c.Binding.(*registry.ControllerBinding)
		if !ok {
			continue
		}
		if !b.Controller.Running() {
			l.inhibited[c.Name] = false
			continue
		}

		feedback := entity.None[float64]()
		inhibited := l.isInhibited(c.Name, b, values)
		if inhibited != l.inhibited[c.Name] {
			zap.S().Infow("controller interlock changed", "channel", c.Name, "inhibited", inhibited, "condition", b.Inhibit.String())
		}
		l.inhibited[c.Name] = inhibited

		if !inhibited && b.Feedback != "" {
			feedback = l.feedback(ctx, b.Feedback, reads)
		}

		b.Controller.Step(now, feedback)
	}
}

// isInhibited evaluates the interlock of a controller. A condition which cannot be evaluated does not inhibit.
func (l *Loop) isInhibited(name string, b *registry.ControllerBinding, values map[string]float64) bool {
	if b.Inhibit == nil {
		return false
	}

	inhibited, err := b.Inhibit.Evaluate(values)
	l.report("interlock/"+name, err, "channel", name, "condition", b.Inhibit.String())
	if err != nil {
		return false
	}
	return inhibited
}

// feedback refreshes the feedback channel and returns its value. A failed read returns the last value.
func (l *Loop) feedback(ctx context.Context, name string, reads map[entity.Port]reading) entity.Option[float64] {
	c, ok := l.registry.Get(name)
	if !ok {
		return entity.None[float64]()
	}

	switch b := c.Binding.(type) {
	case *registry.SensorBinding:
		l.readSensor(ctx, b, reads)
		return b.Value
	case *registry.RawBinding:
		if !b.HasInput() {
			return entity.None[float64]()
		}
		l.readMeasured(ctx, b, reads)
		return b.Measured
	default:
		return entity.None[float64]()
	}
}

func (l *Loop) readInputs(ctx context.Context, reads map[entity.Port]reading) {
	for _, c := range l.registry.Channels() {
		switch b := c.Binding.(type) {
		case *registry.SensorBinding:
			l.readSensor(ctx, b, reads)
			if !b.Value.None {
				l.metrics.Value(c.Name, b.Value.Value)
			}
		case *registry.RawBinding:
			if !b.HasInput() {
				continue
			}
			l.readMeasured(ctx, b, reads)
			if !b.Measured.None {
				l.metrics.Value(c.Name, b.Measured.Value)
			}
		}
	}
}

func (l *Loop) readSensor(ctx context.Context, b *registry.SensorBinding, reads map[entity.Port]reading) {
	raw, err := l.read(ctx, b.Input, reads)
	if err != nil {
		return
	}
	b.Raw = entity.Some(raw)
	b.Value = entity.Some(b.Conversion.ToEngineering(raw))
}

func (l *Loop) readMeasured(ctx context.Context, b *registry.RawBinding, reads map[entity.Port]reading) {
	raw, err := l.read(ctx, b.Input, reads)
	if err != nil {
		return
	}
	b.Measured = entity.Some(b.Conversion.ToEngineering(raw))
}

func (l *Loop) read(ctx context.Context, p entity.Port, reads map[entity.Port]reading) (float64, error) {
	if r, ok := reads[p]; ok {
		return r.value, r.err
	}

	readCtx, cancel := context.WithTimeout(ctx, l.options.DeviceTimeout)
	v, err := device.ReadPort(readCtx, l.io, p)
	cancel()

	reads[p] = reading{value: v, err: err}
	if err != nil {
		l.metrics.DeviceError("read")
	}
	l.report("read/"+p.String(), err, "port", p.String())

	return v, err
}

func (l *Loop) write(ctx context.Context, p entity.Port, v float64) {
	writeCtx, cancel := context.WithTimeout(ctx, l.options.DeviceTimeout)
	err := device.WritePort(writeCtx, l.io, p, v)
	cancel()

	if err != nil {
		l.metrics.DeviceError("write")
	}
	l.report("write/"+p.String(), err, "port", p.String())
}

// commit writes controller outputs, requested values and valve states to their registers.
func (l *Loop) commit(ctx context.Context) {
	for _, c := range l.registry.Channels() {
		switch b := c.Binding.(type) {
		case *registry.RawBinding:
			if b.Requested.None {
				continue
			}
			l.write(ctx, b.Output, b.Conversion.ToRaw(b.Requested.Value))
		case *registry.ControllerBinding:
			l.write(ctx, b.Output, b.Register())
			l.metrics.Controller(c.Name, b.Controller.Soll(), b.Controller.Out())
		case *registry.ValveBinding:
			l.write(ctx, b.Output, b.Register())
		case *registry.SensorBinding:
		}
	}
}
