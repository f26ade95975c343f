package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs retention cleanup on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	app     *App
	timeout time.Duration
}

// NewScheduler schedules App.Cleanup at spec, e.g. "@hourly" or "0 3 * * *".
func NewScheduler(a *App, spec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		app:     a,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(spec, s.runCleanup); err != nil {
		return nil, fmt.Errorf("schedule cleanup %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.app.Cleanup(ctx)
	if err != nil {
		s.app.logger.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	if n > 0 {
		s.app.logger.Info().Int64("removed", n).Msg("retention cleanup")
	}
}
