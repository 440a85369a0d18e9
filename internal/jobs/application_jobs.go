package jobs

import (
	"context"
	"fmt"
	"time"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
)

const (
	JobPendingDigest = "pending_applications_digest"
	JobCallReminders = "call_reminders"

	// Calls starting between 23 and 24 hours from now are reminded. With the
	// default hourly schedule every call is reminded exactly once.
	callReminderLead   = 24 * time.Hour
	callReminderWindow = time.Hour
)

// SendPendingApplicationsDigest emails every admin when applications have been
// waiting longer than the configured number of days
func (jr *JobRunner) SendPendingApplicationsDigest() error {
	return jr.runWithRecovery(JobPendingDigest, func(ctx context.Context) error {
		olderThan := time.Duration(jr.config.Scheduler.PendingDigestAfterDays) * 24 * time.Hour
		cutoff := jr.now().UTC().Add(-olderThan)

		count, err := jr.repos.Applications.CountPendingOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to count pending applications: %w", err)
		}
		if count == 0 {
			logger.Info("No stale pending applications", "cutoff", cutoff)
			return nil
		}

		admins, err := jr.repos.Users.ListByRole(ctx, domain.RoleSlugAdmin)
		if err != nil {
			return fmt.Errorf("failed to list admins: %w", err)
		}
		if len(admins) == 0 {
			logger.Warn("Stale pending applications but no admin to notify", "count", count)
			return nil
		}

		if err := jr.email.SendPendingDigest(ctx, admins, count, olderThan); err != nil {
			return fmt.Errorf("failed to send pending digest: %w", err)
		}
		logger.Info("Pending digest sent", "count", count, "recipients", len(admins))
		return nil
	})
}

// SendUpcomingCallReminders reminds applicants of calls scheduled for about a
// day from now
func (jr *JobRunner) SendUpcomingCallReminders() error {
	return jr.runWithRecovery(JobCallReminders, func(ctx context.Context) error {
		to := jr.now().UTC().Add(callReminderLead)
		from := to.Add(-callReminderWindow)

		apps, err := jr.repos.Applications.ListCallsScheduledBetween(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to list scheduled calls: %w", err)
		}

		sent, failed := 0, 0
		for _, app := range apps {
			if app.User == nil || app.CallScheduledAt == nil {
				continue
			}
			if err := jr.email.SendCallReminder(ctx, app.User, *app.CallScheduledAt); err != nil {
				logger.Error("Failed to send call reminder", "applicationID", app.ID, "error", err)
				failed++
				continue
			}
			sent++
		}

		logger.Info("Call reminders processed", "sent", sent, "failed", failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d call reminders failed", failed, len(apps))
		}
		return nil
	})
}
