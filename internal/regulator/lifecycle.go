package regulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/qmuntal/stateless"
	"github.com/tupyy/rigctl/internal/entity"
	"go.uber.org/zap"
)

var ErrControllerNotRunning = errors.New("controller not running")

const (
	triggerStart    = "start"
	triggerRetarget = "retarget"
	triggerStop     = "stop"
)

// lifecycle is the Stopped/Running machine shared by every controller kind.
// onStart runs on every start, including a start while already running.
type lifecycle struct {
	name    string
	machine *stateless.StateMachine
}

func newLifecycle(name string, onStart, onRetarget func(soll float64), onStop func()) *lifecycle {
	l := &lifecycle{name: name}

	l.machine = stateless.NewStateMachine(entity.StoppedState)
	l.machine.SetTriggerParameters(triggerStart, float64Type)
	l.machine.SetTriggerParameters(triggerRetarget, float64Type)

	l.machine.Configure(entity.StoppedState).
		Permit(triggerStart, entity.RunningState).
		Ignore(triggerStop).
		OnEntryFrom(triggerStop, func(_ context.Context, _ ...any) error {
			onStop()
			return nil
		})

	l.machine.Configure(entity.RunningState).
		PermitReentry(triggerStart).
		Permit(triggerStop, entity.StoppedState).
		InternalTransition(triggerRetarget, func(_ context.Context, args ...any) error {
			onRetarget(args[0].(float64))
			return nil
		}).
		OnEntryFrom(triggerStart, func(_ context.Context, args ...any) error {
			onStart(args[0].(float64))
			return nil
		})

	l.machine.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		zap.S().Debugw("controller transitioned", "controller", name, "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})

	return l
}

func (l *lifecycle) start(soll float64) error {
	return l.machine.Fire(triggerStart, soll)
}

func (l *lifecycle) retarget(soll float64) error {
	if !l.running() {
		return fmt.Errorf("%w: %s", ErrControllerNotRunning, l.name)
	}
	return l.machine.Fire(triggerRetarget, soll)
}

func (l *lifecycle) stop() error {
	return l.machine.Fire(triggerStop)
}

func (l *lifecycle) state() entity.ControllerState {
	return l.machine.MustState().(entity.ControllerState)
}

func (l *lifecycle) running() bool {
	return l.state() == entity.RunningState
}
