package registry

import (
	"strings"

	"github.com/tupyy/rigctl/internal/configuration/interpreter"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/regulator"
)

// Binding ties a channel to its registers. The set of bindings is closed:
// RawBinding, ControllerBinding, SensorBinding and ValveBinding.
type Binding interface {
	Kind() entity.ChannelKind
	binding()
}

// RawBinding stores a requested value which is committed to an output register.
// With an input register it is an mfc-like channel which also reads back its actual value.
type RawBinding struct {
	Output     entity.Port
	Input      entity.Port
	Conversion entity.Conversion
	// Requested is the last requested value in engineering units.
	Requested entity.Option[float64]
	// Measured is the last value read from Input in engineering units.
	Measured entity.Option[float64]
}

func NewRawBinding(output, input entity.Port, conversion entity.Conversion) *RawBinding {
	return &RawBinding{
		Output:     output,
		Input:      input,
		Conversion: conversion,
		Requested:  entity.None[float64](),
		Measured:   entity.None[float64](),
	}
}

func (b *RawBinding) Kind() entity.ChannelKind { return entity.RawSetpointChannel }

func (b *RawBinding) binding() {}

// HasInput is true for mfc-like channels.
func (b *RawBinding) HasInput() bool {
	return !b.Input.IsZero()
}

// ControllerBinding binds a PI or Direct controller to an output register.
type ControllerBinding struct {
	Controller regulator.Controller
	Output     entity.Port
	OutputType entity.OutputType
	// Feedback names the sensor channel feeding a PI controller.
	Feedback string
	// Inhibit holds the controller step while it evaluates true.
	Inhibit *interpreter.Interpreter
	// Power scales out for display.
	Power float64
}

func (b *ControllerBinding) Kind() entity.ChannelKind {
	if _, ok := b.Controller.(*regulator.PI); ok {
		return entity.PIChannel
	}
	return entity.DirectChannel
}

func (b *ControllerBinding) binding() {}

// Register returns the value written to the output register.
func (b *ControllerBinding) Register() float64 {
	out := b.Controller.Out()
	if b.OutputType == entity.AnalogMilliAmpOutput {
		return (4 + 16*out) * 1000
	}
	return out
}

// Display returns out scaled by power. A zero power displays out unchanged.
func (b *ControllerBinding) Display() float64 {
	if b.Power == 0 {
		return b.Controller.Out()
	}
	return b.Controller.Out() * b.Power
}

// SensorBinding is a read-only input register.
type SensorBinding struct {
	Input      entity.Port
	Conversion entity.Conversion
	// Raw is the last raw register value.
	Raw entity.Option[float64]
	// Value is Raw converted to engineering units.
	Value entity.Option[float64]
}

func NewSensorBinding(input entity.Port, conversion entity.Conversion) *SensorBinding {
	return &SensorBinding{
		Input:      input,
		Conversion: conversion,
		Raw:        entity.None[float64](),
		Value:      entity.None[float64](),
	}
}

func (b *SensorBinding) Kind() entity.ChannelKind { return entity.SensorChannel }

func (b *SensorBinding) binding() {}

// ValveBinding is a two-state output register.
type ValveBinding struct {
	Output entity.Port
	Open   bool
}

func (b *ValveBinding) Kind() entity.ChannelKind { return entity.ValveChannel }

func (b *ValveBinding) binding() {}

// Register returns 1 for an open valve and 0 otherwise.
func (b *ValveBinding) Register() float64 {
	if b.Open {
		return 1
	}
	return 0
}

// ParseValve maps a target onto a valve state. ok is false when the value does not name a state.
// A number opens the valve only when it is 1.
func ParseValve(v entity.Value) (open bool, ok bool) {
	if n, isNum := v.Float(); isNum {
		return n == 1, true
	}

	switch strings.ToLower(strings.TrimSpace(v.Raw)) {
	case "open", "on", "true", "auf":
		return true, true
	case "closed", "close", "off", "false", "zu":
		return false, true
	default:
		return false, false
	}
}
