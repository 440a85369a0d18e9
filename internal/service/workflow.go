package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
	"voluntia-backend/internal/security"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

type workflowService struct {
	tx       repository.Transactor
	repos    repository.Repositories
	issuer   security.CredentialIssuer
	notifier WelcomeNotifier
	observer TransitionObserver
}

// NewWorkflowService wires the decision workflow. repos is used for reads
// outside a transaction. notifier and observer may be nil.
func NewWorkflowService(
	tx repository.Transactor,
	repos repository.Repositories,
	issuer security.CredentialIssuer,
	notifier WelcomeNotifier,
	observer TransitionObserver,
) WorkflowService {
	return &workflowService{
		tx:       tx,
		repos:    repos,
		issuer:   issuer,
		notifier: notifier,
		observer: observer,
	}
}

func (s *workflowService) ScheduleCall(ctx context.Context, applicationID int32, callTime time.Time, staffID int32) (*domain.Application, error) {
	logger.EnterMethod("workflowService.ScheduleCall", "applicationID", applicationID, "staffID", staffID)
	start := time.Now()

	var app *domain.Application
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		app, err = lockApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}
		if err := app.ScheduleCall(callTime.UTC(), staffID); err != nil {
			return err
		}
		if err := repos.Applications.Update(ctx, app); err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return nil
	})
	err = s.finish(domain.TransitionScheduleCall, applicationID, staffID, start, err)
	if err != nil {
		return nil, err
	}

	logger.Info("Call scheduled", "applicationID", applicationID, "staffID", staffID, "callAt", app.CallScheduledAt)
	return app, nil
}

func (s *workflowService) Approve(ctx context.Context, applicationID int32, notes *string, staffID int32) (*ApprovalResult, error) {
	logger.EnterMethod("workflowService.Approve", "applicationID", applicationID, "staffID", staffID)
	start := time.Now()

	// Hashing is slow, so the credential is prepared before the row lock is taken.
	cred, err := s.issuer.Issue()
	if err != nil {
		err = s.finish(domain.TransitionApprove, applicationID, staffID, start, fmt.Errorf("failed to issue credential: %w", err))
		return nil, err
	}

	result := &ApprovalResult{TemporaryPassword: cred.Plain}
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		app, err := lockApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}
		if err := app.Decide(domain.TransitionApprove, notes, staffID); err != nil {
			return err
		}

		slug, ok := app.DesiredMembershipType.RoleSlug()
		if !ok {
			return fmt.Errorf("%w: no role mapped for membership type %q", ErrConfiguration, app.DesiredMembershipType)
		}
		role, err := repos.Roles.GetBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: role %q is missing from reference data", ErrConfiguration, slug)
			}
			return fmt.Errorf("failed to look up role %q: %w", slug, err)
		}

		if err := repos.Applications.Update(ctx, app); err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		if err := repos.Users.AddRole(ctx, app.UserID, role.ID); err != nil {
			return fmt.Errorf("failed to grant role %q: %w", slug, err)
		}
		if err := repos.Users.SetPasswordHash(ctx, app.UserID, cred.Hash); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}

		user, err := repos.Users.GetByID(ctx, app.UserID)
		if err != nil {
			return fmt.Errorf("failed to load applicant %d: %w", app.UserID, err)
		}
		result.Application = app
		result.User = user
		result.GrantedRole = slug
		return nil
	})
	err = s.finish(domain.TransitionApprove, applicationID, staffID, start, err)
	if err != nil {
		return nil, err
	}

	logger.Info("Application approved", "applicationID", applicationID, "staffID", staffID, "role", result.GrantedRole)
	s.notifyApproved(ctx, result)
	return result, nil
}

func (s *workflowService) Decline(ctx context.Context, applicationID int32, notes *string, staffID int32) (*domain.Application, error) {
	logger.EnterMethod("workflowService.Decline", "applicationID", applicationID, "staffID", staffID)
	start := time.Now()

	var app *domain.Application
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		app, err = lockApplication(ctx, repos, applicationID)
		if err != nil {
			return err
		}
		if err := app.Decide(domain.TransitionDecline, notes, staffID); err != nil {
			return err
		}
		if err := repos.Applications.Update(ctx, app); err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return nil
	})
	err = s.finish(domain.TransitionDecline, applicationID, staffID, start, err)
	if err != nil {
		return nil, err
	}

	logger.Info("Application declined", "applicationID", applicationID, "staffID", staffID)
	return app, nil
}

func (s *workflowService) ListApplications(ctx context.Context, filter domain.ApplicationFilter) (*ApplicationPage, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *filter.Status)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	items, total, err := s.repos.Applications.List(ctx, filter)
	if err != nil {
		logger.Error("Failed to list applications", "error", err)
		return nil, classify(fmt.Errorf("failed to list applications: %w", err))
	}
	if items == nil {
		items = []domain.Application{}
	}
	return &ApplicationPage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *workflowService) GetApplication(ctx context.Context, applicationID int32) (*domain.Application, error) {
	app, err := s.repos.Applications.GetByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: application %d", ErrNotFound, applicationID)
		}
		return nil, classify(fmt.Errorf("failed to get application: %w", err))
	}

	if app.User, err = s.repos.Users.GetByID(ctx, app.UserID); err != nil {
		return nil, classify(fmt.Errorf("failed to load applicant: %w", err))
	}
	if app.ProcessedByAdminID != nil {
		if app.ProcessedByAdmin, err = s.repos.Users.GetByID(ctx, *app.ProcessedByAdminID); err != nil {
			return nil, classify(fmt.Errorf("failed to load processing staff: %w", err))
		}
	}
	return app, nil
}

// lockApplication reads the application under a row lock held until the
// surrounding transaction ends.
func lockApplication(ctx context.Context, repos repository.Repositories, id int32) (*domain.Application, error) {
	app, err := repos.Applications.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: application %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to lock application %d: %w", id, err)
	}
	return app, nil
}

// finish classifies err, logs it at the right level and records the outcome.
func (s *workflowService) finish(t domain.Transition, applicationID, staffID int32, start time.Time, err error) error {
	err = classify(err)
	outcome := outcomeOf(err)
	if s.observer != nil {
		s.observer.ObserveTransition(t, outcome, time.Since(start))
	}

	method := "workflowService." + string(t)
	switch {
	case err == nil:
		logger.ExitMethod(method, "applicationID", applicationID)
	case errors.Is(err, ErrInternal), errors.Is(err, ErrConfiguration):
		logger.ExitMethodWithError(method, err, "applicationID", applicationID, "staffID", staffID)
	default:
		logger.Warn("Workflow transition rejected", "transition", t, "applicationID", applicationID,
			"staffID", staffID, "outcome", outcome, "error", err)
	}
	return err
}

func (s *workflowService) notifyApproved(ctx context.Context, result *ApprovalResult) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyApproved(ctx, result.User, result.Application, result.TemporaryPassword); err != nil {
		logger.Error("Failed to queue welcome notification", "applicationID", result.Application.ID,
			"userID", result.User.ID, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	default:
		return "error"
	}
}
