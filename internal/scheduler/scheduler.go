package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"voluntia-backend/internal/jobs"
	"voluntia-backend/internal/logger"
)

// scheduleOff disables a job from configuration.
const scheduleOff = "off"

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.JobRunner
}

// NewScheduler creates a scheduler and registers every job whose schedule is
// set. An invalid cron expression is an error.
func NewScheduler(jobRunner *jobs.JobRunner) (*Scheduler, error) {
	// Create cron with UTC timezone and seconds precision
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{
		cron: c,
		jobs: jobRunner,
	}

	if err := s.registerJobs(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) registerJobs() error {
	cfg := s.jobs.Config().Scheduler

	entries := []struct {
		name     string
		schedule string
		run      func() error
	}{
		{jobs.JobPendingDigest, cfg.PendingDigest, s.jobs.SendPendingApplicationsDigest},
		{jobs.JobCallReminders, cfg.CallReminders, s.jobs.SendUpcomingCallReminders},
	}

	for _, e := range entries {
		if e.schedule == "" || e.schedule == scheduleOff {
			logger.Info("Job disabled, no schedule configured", "job", e.name)
			continue
		}
		run := e.run
		// Failures are logged and recorded by the runner.
		if _, err := s.cron.AddFunc(e.schedule, func() { _ = run() }); err != nil {
			return fmt.Errorf("failed to register %s job with schedule %q: %w", e.name, e.schedule, err)
		}
		logger.Info("Job registered", "job", e.name, "schedule", e.schedule)
	}
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	logger.Info("Starting cron scheduler...")
	s.cron.Start()
	logger.Info("Cron scheduler started successfully")
}

// Stop gracefully stops the cron scheduler, waiting for running jobs
func (s *Scheduler) Stop() {
	logger.Info("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Cron scheduler stopped")
}

// JobCount returns the number of registered jobs
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}
