package service

import (
	"context"
	"time"

	"voluntia-backend/internal/domain"
)

// WorkflowService is the decision workflow over membership applications.
// Every transition runs in its own transaction and locks the application row.
type WorkflowService interface {
	ScheduleCall(ctx context.Context, applicationID int32, callTime time.Time, staffID int32) (*domain.Application, error)
	Approve(ctx context.Context, applicationID int32, notes *string, staffID int32) (*ApprovalResult, error)
	Decline(ctx context.Context, applicationID int32, notes *string, staffID int32) (*domain.Application, error)
	ListApplications(ctx context.Context, filter domain.ApplicationFilter) (*ApplicationPage, error)
	GetApplication(ctx context.Context, applicationID int32) (*domain.Application, error)
}

type IntakeService interface {
	SubmitApplication(ctx context.Context, input SubmitApplicationInput) (*domain.Application, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	ChangePassword(ctx context.Context, userID int32, currentPassword, newPassword string) error
	GetProfile(ctx context.Context, userID int32) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int32, update domain.ProfileUpdate) (*domain.User, error)
}

// UserService is the staff view of the user directory.
type UserService interface {
	ListUsers(ctx context.Context, filter domain.UserFilter) (*UserPage, error)
}

// EmailService renders and sends the transactional emails.
type EmailService interface {
	SendWelcome(ctx context.Context, user *domain.User, membershipType domain.MembershipType, temporaryPassword string) error
	SendCallReminder(ctx context.Context, user *domain.User, callAt time.Time) error
	SendPendingDigest(ctx context.Context, to []domain.User, pendingCount int32, olderThan time.Duration) error
}

// WelcomeNotifier is told about approvals after they commit. Implementations
// must not block; a failure never affects the approval.
type WelcomeNotifier interface {
	NotifyApproved(ctx context.Context, user *domain.User, app *domain.Application, temporaryPassword string) error
}

// TransitionObserver records the outcome of each workflow transition.
type TransitionObserver interface {
	ObserveTransition(transition domain.Transition, outcome string, elapsed time.Duration)
}

// ApprovalResult is returned once per approval. TemporaryPassword is the only
// copy of the plaintext credential.
type ApprovalResult struct {
	Application       *domain.Application
	User              *domain.User
	GrantedRole       domain.RoleSlug
	TemporaryPassword string
}

type ApplicationPage struct {
	Items []domain.Application `json:"data"`
	Total int32                `json:"total"`
	Page  int32                `json:"page"`
	Limit int32                `json:"limit"`
}

type UserPage struct {
	Items []domain.User `json:"data"`
	Total int32         `json:"total"`
	Page  int32         `json:"page"`
	Limit int32         `json:"limit"`
}

// SubmitApplicationInput is a validated public application.
type SubmitApplicationInput struct {
	Name           string
	Email          string
	Phone          *string
	MembershipType domain.MembershipType
	Motivation     *string
	AdditionalData domain.AdditionalData
}
