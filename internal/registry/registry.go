package registry

import (
	"errors"
	"fmt"

	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/regulator"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrReadOnly       = errors.New("channel is read-only")
	// ErrNotNumeric is returned when a literal is routed to a channel which needs a number.
	ErrNotNumeric = errors.New("value is not numeric")
)

// Channel is a named control point of the rig.
type Channel struct {
	Name    string
	Unit    string
	Binding Binding
}

// Registry maps channel names to their bindings. Iteration follows configuration order.
// It is owned by the dispatch loop and is not safe for concurrent use.
type Registry struct {
	channels map[string]*Channel
	order    []*Channel
}

func New() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

func (r *Registry) Add(c *Channel) error {
	if c.Name == "" {
		return fmt.Errorf("channel without name")
	}
	if _, ok := r.channels[c.Name]; ok {
		return fmt.Errorf("duplicate channel '%s'", c.Name)
	}
	if c.Binding == nil {
		return fmt.Errorf("channel '%s' has no binding", c.Name)
	}

	r.channels[c.Name] = c
	r.order = append(r.order, c)

	return nil
}

func (r *Registry) Get(name string) (*Channel, bool) {
	c, ok := r.channels[name]
	return c, ok
}

// Channels returns the channels in configuration order.
func (r *Registry) Channels() []*Channel {
	return r.order
}

func (r *Registry) Len() int {
	return len(r.order)
}

// Controllers returns the controller bindings by channel name.
func (r *Registry) Controllers() map[string]*ControllerBinding {
	controllers := make(map[string]*ControllerBinding)
	for _, c := range r.order {
		if b, ok := c.Binding.(*ControllerBinding); ok {
			controllers[c.Name] = b
		}
	}
	return controllers
}

// Route hands a target value to the channel.
// Raw setpoints store it as requested value, controllers are started or retargeted,
// valves open or close. An empty literal leaves the channel untouched.
func (r *Registry) Route(name string, v entity.Value) error {
	c, ok := r.channels[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}

	if v.IsEmpty() {
		return nil
	}

	switch b := c.Binding.(type) {
	case *RawBinding:
		n, ok := v.Float()
		if !ok {
			return fmt.Errorf("%w: %s=%q", ErrNotNumeric, name, v.Raw)
		}
		b.Requested = entity.Some(n)
	case *ControllerBinding:
		n, ok := v.Float()
		if !ok {
			return fmt.Errorf("%w: %s=%q", ErrNotNumeric, name, v.Raw)
		}
		return regulator.Apply(b.Controller, n)
	case *ValveBinding:
		open, ok := ParseValve(v)
		if !ok {
			return fmt.Errorf("%w: %s=%q", ErrNotNumeric, name, v.Raw)
		}
		b.Open = open
	case *SensorBinding:
		return fmt.Errorf("%w: %s", ErrReadOnly, name)
	default:
		return fmt.Errorf("channel '%s' has unsupported binding %T", name, b)
	}

	return nil
}

// Values returns the current value of each channel for condition evaluation:
// the converted reading of sensors, the output of controllers, the requested value of raw setpoints
// and 1 or 0 for valves. Channels without a value are left out.
func (r *Registry) Values() map[string]float64 {
	values := make(map[string]float64, len(r.order))
	for _, c := range r.order {
		switch b := c.Binding.(type) {
		case *RawBinding:
			if !b.Requested.None {
				values[c.Name] = b.Requested.Value
			}
		case *ControllerBinding:
			values[c.Name] = b.Controller.Out()
		case *ValveBinding:
			values[c.Name] = b.Register()
		case *SensorBinding:
			if !b.Value.None {
				values[c.Name] = b.Value.Value
			}
		}
	}
	return values
}
