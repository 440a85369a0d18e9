package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"voluntia-backend/internal/logger"
	"voluntia-backend/internal/repository"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every repository can run
// either standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
	repository.UserRepository
	repository.RoleRepository
	repository.ApplicationRepository
}

// NewStore builds the repositories on top of db. lockTimeout bounds how long
// a transaction waits for a row lock; zero leaves the server default.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	return &Store{
		db:                    db,
		lockTimeout:           lockTimeout,
		UserRepository:        NewUserRepository(db),
		RoleRepository:        NewRoleRepository(db),
		ApplicationRepository: NewApplicationRepository(db),
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:        s.UserRepository,
		Roles:        s.RoleRepository,
		Applications: s.ApplicationRepository,
	}
}

func newRepositories(q DBTX) repository.Repositories {
	return repository.Repositories{
		Users:        NewUserRepository(q),
		Roles:        NewRoleRepository(q),
		Applications: NewApplicationRepository(q),
	}
}

// WithinTx implements repository.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	logger.DatabaseCall("BEGIN", "transaction")
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.DatabaseResult("BEGIN", 0, err)
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op returning sql.ErrTxDone.
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, newRepositories(tx)); err != nil {
		logger.Debug("Rolling back transaction", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.DatabaseResult("COMMIT", 0, err)
		return fmt.Errorf("commit transaction: %w", translateError(err))
	}
	logger.DatabaseResult("COMMIT", 0, nil)
	return nil
}
