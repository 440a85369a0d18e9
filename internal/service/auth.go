package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
	"voluntia-backend/internal/security"
)

const minPasswordLength = 8

type authService struct {
	users  repository.UserRepository
	hasher security.PasswordHasher
	tokens security.TokenManager
}

func NewAuthService(users repository.UserRepository, hasher security.PasswordHasher, tokens security.TokenManager) AuthService {
	return &authService{users: users, hasher: hasher, tokens: tokens}
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	logger.EnterMethod("authService.Login", "email", email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
		}
		return "", nil, classify(fmt.Errorf("failed to get user: %w", err))
	}
	// Applicants have no password until they are approved.
	if !user.HasPassword() {
		return "", nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err := s.hasher.Compare(*user.PasswordHash, password); err != nil {
		return "", nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	if user.Roles, err = s.users.ListRoles(ctx, user.ID); err != nil {
		return "", nil, classify(fmt.Errorf("failed to load roles: %w", err))
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.RoleSlugs())
	if err != nil {
		return "", nil, classify(fmt.Errorf("failed to generate access token: %w", err))
	}

	logger.ExitMethod("authService.Login", "userID", user.ID)
	return token, user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID int32, currentPassword, newPassword string) error {
	logger.EnterMethod("authService.ChangePassword", "userID", userID)

	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	if newPassword == currentPassword {
		return fmt.Errorf("%w: new password must differ from the current one", ErrValidation)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return classify(fmt.Errorf("failed to get user: %w", err))
	}
	if !user.HasPassword() {
		return fmt.Errorf("%w: no password is set for this account", ErrInvalidState)
	}
	if err := s.hasher.Compare(*user.PasswordHash, currentPassword); err != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return classify(err)
	}
	if err := s.users.SetPasswordHash(ctx, userID, hash); err != nil {
		return classify(fmt.Errorf("failed to update password: %w", err))
	}

	logger.Info("Password changed", "userID", userID)
	return nil
}

func (s *authService) GetProfile(ctx context.Context, userID int32) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get user: %w", err))
	}
	if user.Roles, err = s.users.ListRoles(ctx, userID); err != nil {
		return nil, classify(fmt.Errorf("failed to load roles: %w", err))
	}
	return user, nil
}

// UpdateProfile applies a partial profile change and returns the updated
// profile with roles.
func (s *authService) UpdateProfile(ctx context.Context, userID int32, update domain.ProfileUpdate) (*domain.User, error) {
	logger.EnterMethod("authService.UpdateProfile", "userID", userID)

	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be blank", ErrValidation)
	}
	if update.Tags != nil && len(*update.Tags) > domain.MaxProfileTags {
		return nil, fmt.Errorf("%w: at most %d tags are allowed", ErrValidation, domain.MaxProfileTags)
	}
	if update.IsEmpty() {
		return s.GetProfile(ctx, userID)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get user: %w", err))
	}
	update.Apply(user)
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		logger.ExitMethodWithError("authService.UpdateProfile", err, "userID", userID)
		return nil, classify(fmt.Errorf("failed to update profile: %w", err))
	}
	if user.Roles, err = s.users.ListRoles(ctx, userID); err != nil {
		return nil, classify(fmt.Errorf("failed to load roles: %w", err))
	}

	logger.ExitMethod("authService.UpdateProfile", "userID", userID)
	return user, nil
}
