package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/pantry/pkg/observability"
)

// Job is a unit of scheduled work
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. Each run gets its own timeout and
// overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *observability.Logger
}

// NewScheduler creates a scheduler using standard five field cron
// expressions and descriptors such as @hourly
func NewScheduler(logger *observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
	}
}

// Add registers a job
func (s *Scheduler) Add(name, schedule string, timeout time.Duration, job Job) error {
	logger := s.logger.WithField("job", name)

	_, err := s.cron.AddFunc(schedule, func() {
		defer observability.RecoverPanic(logger, name)

		ctx, cancel := context.WithTimeout(observability.WithLogger(context.Background(), logger), timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			logger.WithError(err).Error("scheduled job failed")
			return
		}
		logger.WithField("duration", time.Since(start).String()).Debug("scheduled job finished")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}

	logger.WithField("schedule", schedule).Info("job scheduled")
	return nil
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// running jobs to finish
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()

	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// ReapJob adapts a TokenReaper to a Job
func ReapJob(reaper *TokenReaper) Job {
	return func(ctx context.Context) error {
		_, err := reaper.Run(ctx)
		return err
	}
}
