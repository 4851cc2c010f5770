package regulator

import (
	"fmt"
	"reflect"
	"time"

	"github.com/tupyy/rigctl/internal/entity"
)

var float64Type = reflect.TypeOf(float64(0))

// Controller is a setpoint regulator with a Stopped/Running lifecycle.
type Controller interface {
	Name() string
	// Start sets soll and moves the controller to Running. A start while running resets its state.
	Start(soll float64) error
	// Retarget changes soll of a running controller without resetting its state.
	Retarget(soll float64) error
	// Stop moves the controller to Stopped and drives its output to the bottom of its range.
	Stop() error
	// Step computes a new output. A running controller without feedback keeps its output.
	Step(now time.Time, feedback entity.Option[float64])
	State() entity.ControllerState
	Running() bool
	Soll() float64
	Out() float64
}

// Apply starts a stopped controller or retargets a running one. A running controller which
// already holds soll is left untouched.
func Apply(c Controller, soll float64) error {
	if c.Running() {
		if c.Soll() == soll {
			return nil
		}
		return c.Retarget(soll)
	}
	return c.Start(soll)
}

type PIConfig struct {
	GainP float64
	GainI float64
	// OutMin and OutMax bound the output and the integral. Both zero means [0,1].
	OutMin float64
	OutMax float64
}

func (c PIConfig) Validate() error {
	if c.GainP < 0 || c.GainI < 0 {
		return fmt.Errorf("gains must be positive: p=%v i=%v", c.GainP, c.GainI)
	}
	if c.GainP == 0 && c.GainI == 0 {
		return fmt.Errorf("missing gains")
	}
	if c.OutMin > c.OutMax {
		return fmt.Errorf("invalid output range [%v,%v]", c.OutMin, c.OutMax)
	}
	return nil
}

func (c PIConfig) bounds() (float64, float64) {
	if c.OutMin == 0 && c.OutMax == 0 {
		return 0, 1
	}
	return c.OutMin, c.OutMax
}

// PI is a closed-loop proportional-integral controller.
// The integration step is the measured wall-clock time between two steps.
type PI struct {
	*lifecycle
	gainP    float64
	gainI    float64
	min      float64
	max      float64
	soll     float64
	out      float64
	integral float64
	// lastStep is zero until the first step after a start.
	lastStep time.Time
}

func NewPI(name string, config PIConfig) *PI {
	min, max := config.bounds()
	p := &PI{
		gainP: config.GainP,
		gainI: config.GainI,
		min:   min,
		max:   max,
		out:   min,
	}

	p.lifecycle = newLifecycle(name,
		func(soll float64) {
			p.soll = soll
			p.integral = 0
			p.lastStep = time.Time{}
		},
		func(soll float64) {
			p.soll = soll
		},
		func() {
			p.out = p.min
			p.integral = 0
		},
	)

	return p
}

func (p *PI) Name() string { return p.name }

func (p *PI) Start(soll float64) error { return p.start(soll) }

func (p *PI) Retarget(soll float64) error { return p.retarget(soll) }

func (p *PI) Stop() error { return p.stop() }

func (p *PI) State() entity.ControllerState { return p.state() }

func (p *PI) Running() bool { return p.running() }

func (p *PI) Soll() float64 { return p.soll }

func (p *PI) Out() float64 { return p.out }

func (p *PI) Integral() float64 { return p.integral }

func (p *PI) Step(now time.Time, feedback entity.Option[float64]) {
	if !p.running() {
		return
	}

	var dt float64
	if !p.lastStep.IsZero() {
		dt = now.Sub(p.lastStep).Seconds()
		if dt < 0 {
			dt = 0
		}
	}
	p.lastStep = now

	if feedback.None {
		return
	}

	e := p.soll - feedback.Value
	// the integral stays within the output range
	p.integral = clamp(p.integral+e*dt*p.gainI, p.min, p.max)
	p.out = clamp(p.gainP*e+p.integral, p.min, p.max)
}

// Direct is an open-loop controller: out is soll in percent converted to a fraction in [0,1].
type Direct struct {
	*lifecycle
	// power scales out for display only.
	power float64
	soll  float64
	out   float64
}

func NewDirect(name string, power float64) *Direct {
	d := &Direct{power: power}

	d.lifecycle = newLifecycle(name,
		func(soll float64) { d.soll = soll },
		func(soll float64) { d.soll = soll },
		func() { d.out = 0 },
	)

	return d
}

func (d *Direct) Name() string { return d.name }

func (d *Direct) Start(soll float64) error { return d.start(soll) }

func (d *Direct) Retarget(soll float64) error { return d.retarget(soll) }

func (d *Direct) Stop() error { return d.stop() }

func (d *Direct) State() entity.ControllerState { return d.state() }

func (d *Direct) Running() bool { return d.running() }

func (d *Direct) Soll() float64 { return d.soll }

func (d *Direct) Out() float64 { return d.out }

// Display returns out scaled by the configured power. A zero power displays out unchanged.
func (d *Direct) Display() float64 {
	if d.power == 0 {
		return d.out
	}
	return d.out * d.power
}

func (d *Direct) Step(_ time.Time, _ entity.Option[float64]) {
	if !d.running() {
		return
	}
	d.out = clamp(d.soll/100, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
