package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tupyy/rigctl/internal/entity"
)

var ErrUnknownRegister = errors.New("unknown register")

//go:generate mockgen -package=device -destination=mock_io.go --build_flags=--mod=mod . IO

// IO is the register boundary of the rig. Output registers are write-only and last-write-wins.
type IO interface {
	Read(ctx context.Context, device string, channel int) (float64, error)
	Write(ctx context.Context, device string, channel int, value float64) error
}

// IOError reports a failed read or write of one register.
type IOError struct {
	Op   string
	Port entity.Port
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ReadPort reads one input register. Failures are returned as *IOError.
func ReadPort(ctx context.Context, io IO, p entity.Port) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, &IOError{Op: "read", Port: p, Err: err}
	}
	v, err := io.Read(ctx, p.Device, p.Channel)
	if err != nil {
		return 0, &IOError{Op: "read", Port: p, Err: err}
	}
	return v, nil
}

// WritePort writes one output register. Failures are returned as *IOError.
func WritePort(ctx context.Context, io IO, p entity.Port, v float64) error {
	if err := ctx.Err(); err != nil {
		return &IOError{Op: "write", Port: p, Err: err}
	}
	if err := io.Write(ctx, p.Device, p.Channel, v); err != nil {
		return &IOError{Op: "write", Port: p, Err: err}
	}
	return nil
}

// Bank is an in-memory register bank used when the rig runs in simulation.
// Output registers may be linked to input registers so that a write is read back.
type Bank struct {
	lock    sync.RWMutex
	inputs  map[entity.Port]float64
	outputs map[entity.Port]float64
	links   map[entity.Port][]entity.Port
}

func NewBank() *Bank {
	return &Bank{
		inputs:  make(map[entity.Port]float64),
		outputs: make(map[entity.Port]float64),
		links:   make(map[entity.Port][]entity.Port),
	}
}

// AddInput declares an input register with its initial raw value.
func (b *Bank) AddInput(p entity.Port, v float64) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.inputs[p] = v
}

// Link mirrors every write of output into input.
func (b *Bank) Link(output, input entity.Port) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if _, ok := b.inputs[input]; !ok {
		b.inputs[input] = 0
	}
	b.links[output] = append(b.links[output], input)
}

func (b *Bank) Read(_ context.Context, device string, channel int) (float64, error) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	v, ok := b.inputs[entity.Port{Device: device, Channel: channel}]
	if !ok {
		return 0, ErrUnknownRegister
	}
	return v, nil
}

func (b *Bank) Write(_ context.Context, device string, channel int, value float64) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	p := entity.Port{Device: device, Channel: channel}
	b.outputs[p] = value
	for _, in := range b.links[p] {
		b.inputs[in] = value
	}
	return nil
}

// Output returns the last value written to an output register.
func (b *Bank) Output(p entity.Port) (float64, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()

	v, ok := b.outputs[p]
	return v, ok
}
