package jobs

import (
	"context"
	"fmt"
	"time"

	"voluntia-backend/internal/config"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
	"voluntia-backend/internal/service"
)

// JobRecorder receives the outcome of every job run
type JobRecorder interface {
	RecordJobRun(job string, success bool, elapsed time.Duration)
}

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	repos    repository.Repositories
	email    service.EmailService
	recorder JobRecorder
	config   *config.Config
	timeout  time.Duration
	now      func() time.Time
}

// NewJobRunner creates a new job runner with all dependencies. recorder may be nil.
func NewJobRunner(repos repository.Repositories, email service.EmailService, recorder JobRecorder, cfg *config.Config) *JobRunner {
	return &JobRunner{
		repos:    repos,
		email:    email,
		recorder: recorder,
		config:   cfg,
		timeout:  5 * time.Minute,
		now:      time.Now,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery, a deadline and
// outcome recording
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
		if jr.recorder != nil {
			jr.recorder.RecordJobRun(jobName, err == nil, time.Since(start))
		}
	}()

	logger.Info("Starting job", "job", jobName)
	if err = jobFunc(ctx); err != nil {
		logger.Error("Job failed", "job", jobName, "error", err, "duration", time.Since(start))
		return err
	}
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
	return nil
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() error {
	var firstErr error
	for _, job := range []func() error{jr.SendPendingApplicationsDigest, jr.SendUpcomingCallReminders} {
		if err := job(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
