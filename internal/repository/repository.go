package repository

import (
	"context"
	"errors"
	"time"

	"voluntia-backend/internal/domain"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("duplicate record")
	ErrLockTimeout = errors.New("timed out waiting for row lock")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetPasswordHash(ctx context.Context, userID int32, hash string) error
	MarkEmailVerified(ctx context.Context, userID int32, at time.Time) error
	UpdateProfile(ctx context.Context, user *domain.User) error
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int32, error)

	// Role assignments
	ListRoles(ctx context.Context, userID int32) ([]domain.Role, error)
	AddRole(ctx context.Context, userID, roleID int32) error
	ListByRole(ctx context.Context, slug domain.RoleSlug) ([]domain.User, error)
}

type RoleRepository interface {
	GetBySlug(ctx context.Context, slug domain.RoleSlug) (*domain.Role, error)
	List(ctx context.Context) ([]domain.Role, error)
	Upsert(ctx context.Context, role *domain.Role) error
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id int32) (*domain.Application, error)
	// GetByIDForUpdate reads the row and holds a write lock on it until the
	// surrounding transaction ends. Only valid inside Transactor.WithinTx.
	GetByIDForUpdate(ctx context.Context, id int32) (*domain.Application, error)
	Update(ctx context.Context, app *domain.Application) error
	List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.Application, int32, error)
	CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int32, error)
	ListCallsScheduledBetween(ctx context.Context, from, to time.Time) ([]domain.Application, error)
}

// Repositories groups the repositories bound to one connection or transaction.
type Repositories struct {
	Users        UserRepository
	Roles        RoleRepository
	Applications ApplicationRepository
}

// Transactor runs fn inside a single database transaction. The transaction
// commits when fn returns nil and rolls back on error or panic.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
