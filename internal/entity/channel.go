package entity

import "fmt"

type ChannelKind int

const (
	// RawSetpointChannel stores a requested value which is committed to an output register.
	RawSetpointChannel ChannelKind = iota
	// PIChannel is bound to a closed-loop PI controller.
	PIChannel
	// DirectChannel is bound to an open-loop percentage controller.
	DirectChannel
	// SensorChannel is a read-only input register.
	SensorChannel
	// ValveChannel is a two-state output register.
	ValveChannel
)

func (k ChannelKind) String() string {
	switch k {
	case RawSetpointChannel:
		return "raw_setpoint"
	case PIChannel:
		return "pi"
	case DirectChannel:
		return "direct"
	case SensorChannel:
		return "sensor"
	case ValveChannel:
		return "valve"
	default:
		return "unknown"
	}
}

// Port addresses one register of a device.
type Port struct {
	Device  string `json:"device"`
	Channel int    `json:"channel"`
}

func (p Port) String() string {
	return fmt.Sprintf("%s[%d]", p.Device, p.Channel)
}

// IsZero returns true if the port is not bound to a device.
func (p Port) IsZero() bool {
	return p.Device == ""
}

type OutputType int

const (
	// FractionOutput writes the controller output as is.
	FractionOutput OutputType = iota
	// AnalogMilliAmpOutput maps [0,1] onto 4-20 mA expressed in microamps.
	AnalogMilliAmpOutput
)

func (o OutputType) String() string {
	if o == AnalogMilliAmpOutput {
		return "analog_mA"
	}
	return "fraction"
}

// Conversion is a linear mapping between raw register values and engineering units:
// eng = (raw*RawScale - Offset) * Gain.
type Conversion struct {
	Gain     float64
	Offset   float64
	RawScale float64
	// ClampNegative floors converted values at zero.
	ClampNegative bool
}

// Identity returns the conversion which leaves values untouched.
func Identity() Conversion {
	return Conversion{Gain: 1, RawScale: 1}
}

func (c Conversion) ToEngineering(raw float64) float64 {
	v := (raw*c.scale() - c.Offset) * c.gain()
	if c.ClampNegative && v < 0 {
		return 0
	}
	return v
}

func (c Conversion) ToRaw(eng float64) float64 {
	return (eng/c.gain() + c.Offset) / c.scale()
}

func (c Conversion) gain() float64 {
	if c.Gain == 0 {
		return 1
	}
	return c.Gain
}

func (c Conversion) scale() float64 {
	if c.RawScale == 0 {
		return 1
	}
	return c.RawScale
}
