package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the sweeper every ten minutes.
const DefaultSweepSchedule = "@every 10m"

// Sweepable drops expired entries and reports how many went.
type Sweepable interface {
	Sweep() int
}

// SweepFunc adapts a function to Sweepable.
type SweepFunc func() int

func (f SweepFunc) Sweep() int { return f() }

// WorkspaceSweeper drops idle workspaces (and any other registered
// expiring state, such as in-memory sessions) on a cron schedule.
type WorkspaceSweeper struct {
	targets  map[string]Sweepable
	logger   logger.Logger
	schedule string
	cron     *cron.Cron
}

func NewWorkspaceSweeper(log logger.Logger, schedule string, targets map[string]Sweepable) *WorkspaceSweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &WorkspaceSweeper{
		targets:  targets,
		logger:   log,
		schedule: schedule,
		cron:     cron.New(cron.WithLocation(time.UTC)),
	}
}

// Start registers the sweep job and starts the cron runner.
func (ws *WorkspaceSweeper) Start(_ context.Context) error {
	if _, err := ws.cron.AddFunc(ws.schedule, func() { ws.Collect() }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", ws.schedule, err)
	}
	ws.cron.Start()
	return nil
}

// Stop stops the cron runner and waits for a running sweep to finish.
func (ws *WorkspaceSweeper) Stop() {
	<-ws.cron.Stop().Done()
}

// Collect sweeps every target once and returns the removed count per target.
func (ws *WorkspaceSweeper) Collect() map[string]int {
	removed := make(map[string]int, len(ws.targets))
	total := 0
	for name, t := range ws.targets {
		n := t.Sweep()
		removed[name] = n
		total += n
	}

	if total > 0 {
		fields := make([]logger.Field, 0, len(removed))
		for name, n := range removed {
			fields = append(fields, logger.Int(name+"_removed", n))
		}
		ws.logger.Info("sweep completed", fields...)
	} else {
		ws.logger.Debug("nothing to sweep")
	}
	return removed
}
