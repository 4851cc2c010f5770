package autostart

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Starter starts a run of the selected profile.
type Starter interface {
	StartProfile(path string) error
}

// Autostart starts the selected profile on a cron schedule.
type Autostart struct {
	spec    string
	starter Starter
	cron    *cron.Cron
}

// New parses a standard five field cron spec.
func New(spec string, starter Starter) (*Autostart, error) {
	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := specParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid autostart schedule '%s': %w", spec, err)
	}

	a := &Autostart{
		spec:    spec,
		starter: starter,
		cron:    cron.New(cron.WithParser(specParser)),
	}
	a.cron.Schedule(sched, cron.FuncJob(a.Fire))

	return a, nil
}

// Fire starts the selected profile now.
func (a *Autostart) Fire() {
	if err := a.starter.StartProfile(""); err != nil {
		zap.S().Errorw("autostart failed", "schedule", a.spec, "error", err)
		return
	}
	zap.S().Infow("profile started by schedule", "schedule", a.spec)
}

// Run runs the schedule until ctx is cancelled.
func (a *Autostart) Run(ctx context.Context) {
	a.cron.Start()
	zap.S().Infow("autostart scheduled", "schedule", a.spec)

	<-ctx.Done()

	<-a.cron.Stop().Done()
}
