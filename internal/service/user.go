package service

import (
	"context"
	"fmt"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"
)

type userService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{users: users}
}

// ListUsers returns one page of the user directory, each user with roles.
func (s *userService) ListUsers(ctx context.Context, filter domain.UserFilter) (*UserPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	items, total, err := s.users.List(ctx, filter)
	if err != nil {
		logger.Error("Failed to list users", "error", err)
		return nil, classify(fmt.Errorf("failed to list users: %w", err))
	}
	if items == nil {
		items = []domain.User{}
	}
	return &UserPage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}
