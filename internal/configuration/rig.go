package configuration

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tupyy/rigctl/internal/configuration/interpreter"
	"github.com/tupyy/rigctl/internal/device"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/regulator"
	"github.com/tupyy/rigctl/internal/registry"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"
)

// ConfigError is returned when the rig file cannot be turned into channels. It is fatal at setup.
type ConfigError struct {
	Channel string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Channel == "" {
		return fmt.Sprintf("rig configuration: %v", e.Err)
	}
	return fmt.Sprintf("rig configuration: channel '%s': %v", e.Channel, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(channel string, format string, args ...interface{}) error {
	return &ConfigError{Channel: channel, Err: fmt.Errorf(format, args...)}
}

var ErrNoChannels = errors.New("no channels")

/*
Rig is the channel layout of the rig:
```yaml
name: reactor-1
channels:
  - name: heater_pi
    type: easy_PI
    output: {device: ao, channel: 0}
    output_type: analog_mA
    feedback: tc_reactor
    gain_p: 0.05
    gain_i: 0.001
    inhibit: heater_direct > 0
  - name: tc_reactor
    type: thermocouple
    input: {device: tc, channel: 0}
    unit: °C
```
*/
type Rig struct {
	Name     string    `json:"name"`
	Channels []Channel `json:"channels"`
}

// Channel describes one channel of the rig file.
type Channel struct {
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Unit   string       `json:"unit,omitempty"`
	Output *entity.Port `json:"output,omitempty"`
	Input  *entity.Port `json:"input,omitempty"`

	// Gain and Offset convert raw values: eng = (raw*RawScale - Offset) * Gain.
	Gain          *float64 `json:"gain,omitempty"`
	Offset        *float64 `json:"offset,omitempty"`
	RawScale      *float64 `json:"raw_scale,omitempty"`
	ClampNegative *bool    `json:"clamp_negative,omitempty"`

	GainP      *float64 `json:"gain_p,omitempty"`
	GainI      *float64 `json:"gain_i,omitempty"`
	OutMin     float64  `json:"out_min,omitempty"`
	OutMax     float64  `json:"out_max,omitempty"`
	Feedback   string   `json:"feedback,omitempty"`
	OutputType string   `json:"output_type,omitempty"`
	Power      float64  `json:"power,omitempty"`
	Inhibit    string   `json:"inhibit,omitempty"`
}

type channelType int

const (
	setpointType channelType = iota
	mfcType
	piType
	directType
	sensorType
	valveType
)

// channelTypes maps the type names of the rig file, case-insensitive.
var channelTypes = map[string]channelType{
	"setpoint":     setpointType,
	"vorgabe":      setpointType,
	"ext_output":   setpointType,
	"extoutput":    setpointType,
	"modbus_pump":  setpointType,
	"mfc":          mfcType,
	"easy_pi":      piType,
	"pi":           piType,
	"direct_heat":  directType,
	"direct":       directType,
	"thermocouple": sensorType,
	"pressure":     sensorType,
	"analytic":     sensorType,
	"flowmeter":    sensorType,
	"ext_input":    sensorType,
	"extinput":     sensorType,
	"sensor":       sensorType,
	"valve":        valveType,
}

// Load reads the rig file at path.
func Load(path string) (Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rig{}, &ConfigError{Err: err}
	}

	rig, err := Parse(data)
	if err != nil {
		return Rig{}, err
	}

	zap.S().Infow("rig file loaded", "path", path, "name", rig.Name, "channels", len(rig.Channels))

	return rig, nil
}

func Parse(data []byte) (Rig, error) {
	var rig Rig
	if err := yaml.UnmarshalStrict(data, &rig); err != nil {
		return Rig{}, &ConfigError{Err: err}
	}
	if len(rig.Channels) == 0 {
		return Rig{}, &ConfigError{Err: ErrNoChannels}
	}
	return rig, nil
}

// Build validates the rig and creates its registry.
func (r Rig) Build() (*registry.Registry, error) {
	reg := registry.New()

	types := make(map[string]channelType, len(r.Channels))
	for _, c := range r.Channels {
		t, ok := channelTypes[strings.ToLower(c.Type)]
		if !ok {
			return nil, configErr(c.Name, "unknown type '%s'", c.Type)
		}

		if c.Gain != nil && *c.Gain == 0 {
			return nil, configErr(c.Name, "gain must not be zero")
		}
		if c.RawScale != nil && *c.RawScale == 0 {
			return nil, configErr(c.Name, "raw_scale must not be zero")
		}

		binding, err := c.binding(t)
		if err != nil {
			return nil, err
		}

		if err := reg.Add(&registry.Channel{Name: c.Name, Unit: c.Unit, Binding: binding}); err != nil {
			return nil, &ConfigError{Channel: c.Name, Err: err}
		}
		types[c.Name] = t
	}

	// references are checked once every channel is known
	for _, c := range r.Channels {
		ch, _ := reg.Get(c.Name)
		b, ok := ch.Binding.(*registry.ControllerBinding)
		if !ok {
			continue
		}

		if b.Feedback != "" {
			t, found := types[b.Feedback]
			if !found {
				return nil, configErr(c.Name, "unknown feedback channel '%s'", b.Feedback)
			}
			if t != sensorType && t != mfcType {
				return nil, configErr(c.Name, "feedback channel '%s' has no input", b.Feedback)
			}
		}

		if b.Inhibit != nil {
			for _, name := range b.Inhibit.Variables() {
				if _, found := types[name]; !found {
					return nil, configErr(c.Name, "inhibit condition refers to unknown channel '%s'", name)
				}
			}
		}
	}

	return reg, nil
}

func (c Channel) binding(t channelType) (registry.Binding, error) {
	switch t {
	case setpointType, mfcType:
		if c.Output == nil {
			return nil, configErr(c.Name, "missing output")
		}
		var input entity.Port
		if t == mfcType {
			if c.Input == nil {
				return nil, configErr(c.Name, "missing input")
			}
			input = *c.Input
		}
		return registry.NewRawBinding(*c.Output, input, c.conversion(t)), nil
	case piType:
		if c.Output == nil {
			return nil, configErr(c.Name, "missing output")
		}
		if c.Feedback == "" {
			return nil, configErr(c.Name, "missing feedback channel")
		}
		if c.GainP == nil || c.GainI == nil {
			return nil, configErr(c.Name, "missing gains")
		}
		config := regulator.PIConfig{GainP: *c.GainP, GainI: *c.GainI, OutMin: c.OutMin, OutMax: c.OutMax}
		if err := config.Validate(); err != nil {
			return nil, &ConfigError{Channel: c.Name, Err: err}
		}
		return c.controllerBinding(regulator.NewPI(c.Name, config))
	case directType:
		if c.Output == nil {
			return nil, configErr(c.Name, "missing output")
		}
		return c.controllerBinding(regulator.NewDirect(c.Name, c.Power))
	case sensorType:
		if c.Input == nil {
			return nil, configErr(c.Name, "missing input")
		}
		return registry.NewSensorBinding(*c.Input, c.conversion(t)), nil
	case valveType:
		if c.Output == nil {
			return nil, configErr(c.Name, "missing output")
		}
		return &registry.ValveBinding{Output: *c.Output}, nil
	default:
		return nil, configErr(c.Name, "unsupported type '%s'", c.Type)
	}
}

func (c Channel) controllerBinding(ctrl regulator.Controller) (registry.Binding, error) {
	b := &registry.ControllerBinding{
		Controller: ctrl,
		Output:     *c.Output,
		Feedback:   c.Feedback,
		Power:      c.Power,
	}

	switch strings.ToLower(c.OutputType) {
	case "", "fraction":
		b.OutputType = entity.FractionOutput
	case "analog_ma":
		b.OutputType = entity.AnalogMilliAmpOutput
	default:
		return nil, configErr(c.Name, "unknown output type '%s'", c.OutputType)
	}

	if c.Inhibit != "" {
		i, err := interpreter.New(c.Inhibit)
		if err != nil {
			return nil, &ConfigError{Channel: c.Name, Err: fmt.Errorf("inhibit condition: %w", err)}
		}
		b.Inhibit = i
	}

	return b, nil
}

// conversion returns the conversion of the channel. Current loop sensors read microamps and
// default to a mA scale; flow meters map 4-20 mA onto 0-100.
func (c Channel) conversion(t channelType) entity.Conversion {
	conv := entity.Identity()

	if t == sensorType {
		switch strings.ToLower(c.Type) {
		case "pressure", "analytic":
			conv.RawScale = 1e-6
		case "flowmeter":
			conv = entity.Conversion{Gain: 100.0 / 16, Offset: 4, RawScale: 1e-6, ClampNegative: true}
		case "ext_input", "extinput":
			conv.ClampNegative = true
		}
	}

	if c.Gain != nil {
		conv.Gain = *c.Gain
	}
	if c.Offset != nil {
		conv.Offset = *c.Offset
	}
	if c.RawScale != nil {
		conv.RawScale = *c.RawScale
	}
	if c.ClampNegative != nil {
		conv.ClampNegative = *c.ClampNegative
	}

	return conv
}

// Simulate declares the input registers of the rig on bank.
// The output of an mfc is read back on its input.
func (r Rig) Simulate(bank *device.Bank) {
	for _, c := range r.Channels {
		if c.Input == nil {
			continue
		}
		if strings.ToLower(c.Type) == "mfc" && c.Output != nil {
			bank.Link(*c.Output, *c.Input)
			continue
		}
		bank.AddInput(*c.Input, 0)
	}
}
