// Package janitor periodically removes staging arenas left behind by
// requests that never reached their cleanup step, e.g. after a crash.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/mtzanidakis/digifuse/internal/config"
	"github.com/mtzanidakis/digifuse/internal/staging"
)

type Janitor struct {
	root     *staging.Root
	schedule string
	maxAge   time.Duration
	logger   *slog.Logger

	now     func() time.Time
	nextRun func(after time.Time) (time.Time, error)
}

func New(root *staging.Root, cfg config.StagingConfig, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	expr := cfg.SweepSchedule
	if expr == "" {
		expr = "*/15 * * * *"
	}
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid sweep schedule %q", expr)
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	j := &Janitor{
		root:     root,
		schedule: expr,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
	j.nextRun = func(after time.Time) (time.Time, error) {
		return gronx.NextTickAfter(j.schedule, after, false)
	}
	return j, nil
}

// NextRun returns the first sweep time strictly after t.
func (j *Janitor) NextRun(t time.Time) (time.Time, error) {
	return j.nextRun(t)
}

// Start sweeps on every schedule tick until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("staging janitor started", "schedule", j.schedule, "max_age", j.maxAge, "dir", j.root.Dir())

	for {
		next, err := j.nextRun(j.now())
		if err != nil {
			j.logger.Error("staging janitor cannot compute next run", "schedule", j.schedule, "error", err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("staging janitor stopped")
			return
		case <-timer.C:
			j.Sweep()
		}
	}
}

// Sweep removes arenas older than the configured max age and reports how
// many were removed.
func (j *Janitor) Sweep() int {
	removed, err := j.root.Sweep(j.maxAge, j.now())
	if err != nil {
		j.logger.Error("staging sweep failed", "dir", j.root.Dir(), "removed", removed, "error", err)
		return removed
	}
	if removed > 0 {
		j.logger.Info("staging sweep removed orphaned arenas", "removed", removed)
	}
	return removed
}
