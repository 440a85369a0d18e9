package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/service"
)

type MockIntakeService struct {
	mock.Mock
}

func (m *MockIntakeService) SubmitApplication(ctx context.Context, input service.SubmitApplicationInput) (*domain.Application, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) ScheduleCall(ctx context.Context, applicationID int32, callTime time.Time, staffID int32) (*domain.Application, error) {
	args := m.Called(ctx, applicationID, callTime, staffID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockWorkflowService) Approve(ctx context.Context, applicationID int32, notes *string, staffID int32) (*service.ApprovalResult, error) {
	args := m.Called(ctx, applicationID, notes, staffID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ApprovalResult), args.Error(1)
}

func (m *MockWorkflowService) Decline(ctx context.Context, applicationID int32, notes *string, staffID int32) (*domain.Application, error) {
	args := m.Called(ctx, applicationID, notes, staffID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockWorkflowService) ListApplications(ctx context.Context, filter domain.ApplicationFilter) (*service.ApplicationPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ApplicationPage), args.Error(1)
}

func (m *MockWorkflowService) GetApplication(ctx context.Context, applicationID int32) (*domain.Application, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(1) == nil {
		return args.String(0), nil, args.Error(2)
	}
	return args.String(0), args.Get(1).(*domain.User), args.Error(2)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, userID int32, currentPassword, newPassword string) error {
	args := m.Called(ctx, userID, currentPassword, newPassword)
	return args.Error(0)
}

func (m *MockAuthService) GetProfile(ctx context.Context, userID int32) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, userID int32, update domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) ListUsers(ctx context.Context, filter domain.UserFilter) (*service.UserPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UserPage), args.Error(1)
}

type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) Check(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
