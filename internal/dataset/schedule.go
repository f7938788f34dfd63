package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler reloads the dataset on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers a reload job for spec, e.g. "0 * * * *" or
// "@every 1h". Each run is bounded by timeout.
func NewScheduler(spec string, timeout time.Duration, reloader Reloader, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := reloader.Reload(ctx); err != nil {
			logger.Warn("scheduled dataset reload failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("reload schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running reload to finish or ctx
// to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
