package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/tupyy/rigctl/internal/containers"
	"github.com/tupyy/rigctl/internal/device"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/history"
	"github.com/tupyy/rigctl/internal/metrics"
	"github.com/tupyy/rigctl/internal/registry"
	"github.com/tupyy/rigctl/internal/scheduler"
	"go.uber.org/zap"
)

const (
	defaultTickPeriod    = 50 * time.Millisecond
	defaultSaveInterval  = time.Second
	defaultDeviceTimeout = 20 * time.Millisecond
)

// ProfileLoader loads recipes from the selected profile source.
type ProfileLoader interface {
	SetSource(path string)
	Source() string
	Load() (entity.Profile, error)
	LoadFile(path string) (entity.Profile, error)
}

// Recorder appends data lines to the log destination.
type Recorder interface {
	SetDestination(path string)
	Destination() string
	// NewRun makes the next write emit the header block.
	NewRun()
	Write(now time.Time, columns, values []string) error
}

// Journal keeps the history of profile runs.
type Journal interface {
	Record(r history.Run)
}

// Observer receives the snapshot published after each tick. Observe must not block.
type Observer interface {
	Observe(s entity.Snapshot)
}

type Options struct {
	TickPeriod    time.Duration
	SaveInterval  time.Duration
	DeviceTimeout time.Duration
	Policy        scheduler.Policy
}

func DefaultOptions() Options {
	return Options{
		TickPeriod:    defaultTickPeriod,
		SaveInterval:  defaultSaveInterval,
		DeviceTimeout: defaultDeviceTimeout,
		Policy:        scheduler.PolicySingle,
	}
}

type Option func(l *Loop)

func WithJournal(j Journal) Option {
	return func(l *Loop) {
		l.journal = j
	}
}

func WithObserver(o Observer) Option {
	return func(l *Loop) {
		l.observers = append(l.observers, o)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

// Loop is the single periodic driver of the rig. Everything it owns, the registry included,
// is touched only from Tick. Commands from other goroutines go through the command queue and
// the observable state is read through Snapshot.
type Loop struct {
	registry  *registry.Registry
	io        device.IO
	profiles  ProfileLoader
	recorder  Recorder
	journal   Journal
	observers []Observer
	metrics   *metrics.Metrics
	options   Options

	commands *containers.Queue[entity.Message]

	run *run
	// manual holds the operator targets by channel name.
	manual map[string]entity.Value
	// held channels were stopped by the operator and are not routed until a new target arrives.
	held      map[string]bool
	inhibited map[string]bool
	recording bool
	lastSave  time.Time
	tick      uint64
	columns   []string
	// failing keeps the last logged error per operation so that a failure is logged once.
	failing map[string]string

	lock     sync.RWMutex
	snapshot entity.Snapshot
}

func New(r *registry.Registry, io device.IO, profiles ProfileLoader, recorder Recorder, options Options, opts ...Option) *Loop {
	defaults := DefaultOptions()
	if options.TickPeriod <= 0 {
		options.TickPeriod = defaults.TickPeriod
	}
	if options.SaveInterval <= 0 {
		options.SaveInterval = defaults.SaveInterval
	}
	if options.DeviceTimeout <= 0 {
		options.DeviceTimeout = defaults.DeviceTimeout
	}

	l := &Loop{
		registry:  r,
		io:        io,
		profiles:  profiles,
		recorder:  recorder,
		options:   options,
		commands:  containers.NewQueue[entity.Message](),
		manual:    make(map[string]entity.Value),
		held:      make(map[string]bool),
		inhibited: make(map[string]bool),
		failing:   make(map[string]string),
		columns:   columns(r),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Run ticks at the configured period until ctx is cancelled. An active run is closed on return.
func (l *Loop) Run(ctx context.Context) error {
	zap.S().Infow("dispatch loop started", "tick_period", l.options.TickPeriod, "save_interval", l.options.SaveInterval, "channels", l.registry.Len())

	ticker := time.NewTicker(l.options.TickPeriod)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			l.Tick(ctx, now)
		case <-ctx.Done():
			if l.run != nil {
				l.stopRun(time.Now(), reasonShutdown)
			}
			zap.S().Infow("dispatch loop stopped", "ticks", l.tick)
			return nil
		}
	}
}

// Tick runs one cycle of the loop: pending commands, schedule, routing, controllers,
// reads, writes, persistence and snapshot.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	began := time.Now()
	l.tick++

	l.applyCommands(now)

	if l.run != nil {
		l.advance(now)
	}

	l.route()

	reads := make(map[entity.Port]reading)
	l.stepControllers(ctx, now, reads)
	l.readInputs(ctx, reads)
	l.commit(ctx)

	l.save(now)
	l.publish(now)

	l.metrics.Tick(time.Since(began))
}

// Snapshot returns the state published by the last tick.
func (l *Loop) Snapshot() entity.Snapshot {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.snapshot
}

// report logs err once per key until the operation succeeds again.
func (l *Loop) report(key string, err error, keysAndValues ...interface{}) {
	if err == nil {
		if _, ok := l.failing[key]; ok {
			delete(l.failing, key)
			zap.S().Infow("operation recovered", append([]interface{}{"operation", key}, keysAndValues...)...)
		}
		return
	}

	if l.failing[key] == err.Error() {
		return
	}
	l.failing[key] = err.Error()
	zap.S().Errorw("operation failed", append([]interface{}{"operation", key, "error", err}, keysAndValues...)...)
}
