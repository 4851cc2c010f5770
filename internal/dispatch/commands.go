package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/profile"
	"github.com/tupyy/rigctl/internal/registry"
	"go.uber.org/zap"
)

var (
	ErrEmptyProfile  = errors.New("profile has no segments")
	ErrNotController = errors.New("channel is not a controller")
)

// The methods below may be called from any goroutine. They validate their input and queue a
// command which is applied at the start of the next tick.

// StartProfile loads the profile at path, or the selected source when path is empty, and
// starts a run with it. A run already active is stopped first.
func (l *Loop) StartProfile(path string) error {
	var (
		p   entity.Profile
		err error
	)
	if path == "" {
		p, err = l.profiles.Load()
	} else {
		p, err = l.profiles.LoadFile(path)
	}
	if err != nil {
		return err
	}
	if p.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyProfile, p.Source)
	}

	if path != "" {
		l.SelectProfileSource(path)
	}
	l.commands.Push(entity.Message{Kind: entity.StartProfileMessage, Payload: p})

	return nil
}

// StopProfile ends the active run. Controllers keep running with their last targets.
func (l *Loop) StopProfile() {
	l.commands.Push(entity.Message{Kind: entity.StopProfileMessage})
}

// ApplyManualValues sets operator targets. An empty value clears the operator target of the channel.
func (l *Loop) ApplyManualValues(values map[string]string) error {
	payload := make(map[string]string, len(values))
	for name, v := range values {
		c, ok := l.registry.Get(name)
		if !ok {
			return fmt.Errorf("%w: %s", registry.ErrUnknownChannel, name)
		}
		if _, isSensor := c.Binding.(*registry.SensorBinding); isSensor {
			return fmt.Errorf("%w: %s", registry.ErrReadOnly, name)
		}
		payload[name] = v
	}

	l.commands.Push(entity.Message{Kind: entity.ManualValuesMessage, Payload: payload})

	return nil
}

func (l *Loop) SelectProfileSource(path string) {
	l.commands.Push(entity.Message{Kind: entity.ProfileSourceMessage, Payload: path})
}

func (l *Loop) SelectLogDestination(path string) {
	l.commands.Push(entity.Message{Kind: entity.LogDestinationMessage, Payload: path})
}

func (l *Loop) SetRecording(enabled bool) {
	l.commands.Push(entity.Message{Kind: entity.RecordingMessage, Payload: enabled})
}

// StopController stops a controller. It stays stopped until it gets a new operator target or a
// new run starts.
func (l *Loop) StopController(name string) error {
	c, ok := l.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrUnknownChannel, name)
	}
	if _, ok := c.Binding.(*registry.ControllerBinding); !ok {
		return fmt.Errorf("%w: %s", ErrNotController, name)
	}

	l.commands.Push(entity.Message{Kind: entity.StopControllerMessage, Payload: name})

	return nil
}

func (l *Loop) applyCommands(now time.Time) {
	for _, m := range l.commands.Drain() {
		l.metrics.Command(m.Kind.String())
		zap.S().Debugw("command received", "kind", m.Kind)

		switch m.Kind {
		case entity.StartProfileMessage:
			l.startRun(now, m.Payload.(entity.Profile))
		case entity.StopProfileMessage:
			if l.run == nil {
				zap.S().Infow("no profile run to stop")
				continue
			}
			l.stopRun(now, reasonStopped)
		case entity.ManualValuesMessage:
			l.applyManual(m.Payload.(map[string]string))
		case entity.ProfileSourceMessage:
			l.profiles.SetSource(m.Payload.(string))
		case entity.LogDestinationMessage:
			l.recorder.SetDestination(m.Payload.(string))
		case entity.RecordingMessage:
			l.setRecording(m.Payload.(bool))
		case entity.StopControllerMessage:
			l.stopController(m.Payload.(string))
		}
	}
}

func (l *Loop) applyManual(values map[string]string) {
	for name, raw := range values {
		if strings.TrimSpace(raw) == "" {
			delete(l.manual, name)
			continue
		}

		v := entity.Literal(raw)
		if n, err := profile.ParseFloat(raw); err == nil {
			v = entity.Number(n)
		}

		l.manual[name] = v
		delete(l.held, name)
		if l.run != nil && l.run.columns[name] {
			l.run.edited[name] = true
		}

		zap.S().Infow("operator target set", "channel", name, "value", v.String())
	}
}

func (l *Loop) stopController(name string) {
	b, ok := l.registry.Controllers()[name]
	if !ok {
		return
	}

	if err := b.Controller.Stop(); err != nil {
		zap.S().Errorw("cannot stop controller", "channel", name, "error", err)
		return
	}

	delete(l.manual, name)
	l.held[name] = true

	zap.S().Infow("controller stopped by operator", "channel", name)
}
