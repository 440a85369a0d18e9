package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
)

type intakeService struct {
	tx    repository.Transactor
	users repository.UserRepository
}

func NewIntakeService(tx repository.Transactor, users repository.UserRepository) IntakeService {
	return &intakeService{tx: tx, users: users}
}

// SubmitApplication creates the applicant and their pending application in
// one transaction. An email that is already registered yields ErrConflict.
func (s *intakeService) SubmitApplication(ctx context.Context, input SubmitApplicationInput) (*domain.Application, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	logger.EnterMethod("intakeService.SubmitApplication", "email", email, "type", input.MembershipType)

	if !input.MembershipType.IsValid() {
		return nil, fmt.Errorf("%w: unknown membership type %q", ErrValidation, input.MembershipType)
	}
	if strings.TrimSpace(input.Name) == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", ErrValidation)
	}

	// Fast path for the common duplicate; the unique index still decides races.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		logger.Info("Duplicate application rejected", "email", email)
		return nil, fmt.Errorf("%w: an application for this email already exists", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.ExitMethodWithError("intakeService.SubmitApplication", err, "email", email)
		return nil, classify(fmt.Errorf("failed to check email: %w", err))
	}

	user := &domain.User{
		Name:        strings.TrimSpace(input.Name),
		Email:       email,
		PhoneNumber: input.Phone,
	}
	app := &domain.Application{
		DesiredMembershipType: input.MembershipType,
		Status:                domain.ApplicationStatusPending,
		Motivation:            input.Motivation,
		AdditionalData:        input.AdditionalData,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create applicant: %w", err)
		}
		app.UserID = user.ID
		if err := repos.Applications.Create(ctx, app); err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			logger.Info("Duplicate application rejected", "email", email)
			return nil, fmt.Errorf("%w: an application for this email already exists", ErrConflict)
		}
		err = classify(err)
		logger.ExitMethodWithError("intakeService.SubmitApplication", err, "email", email)
		return nil, err
	}

	app.User = user
	logger.Info("Application submitted", "applicationID", app.ID, "userID", user.ID, "type", app.DesiredMembershipType)
	logger.ExitMethod("intakeService.SubmitApplication", "applicationID", app.ID)
	return app, nil
}
