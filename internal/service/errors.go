package service

import (
	"errors"
	"fmt"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/repository"
)

// Error kinds returned by every service. Callers branch with errors.Is;
// the wrapped message carries the detail.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidState  = errors.New("invalid state")
	ErrConflict      = errors.New("conflict")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConfiguration = errors.New("configuration error")
	ErrInternal      = errors.New("internal error")
)

var serviceErrors = []error{
	ErrNotFound, ErrInvalidState, ErrConflict, ErrValidation, ErrUnauthorized, ErrConfiguration, ErrInternal,
}

// classify maps lower-layer errors onto the service error kinds. Errors that
// already carry a kind pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range serviceErrors {
		if errors.Is(err, kind) {
			return err
		}
	}
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, repository.ErrLockTimeout):
		return fmt.Errorf("%w: application is being processed by another request, retry: %w", ErrConflict, err)
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}
