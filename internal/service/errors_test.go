package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/repository"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"invalid transition", fmt.Errorf("wrap: %w", domain.ErrInvalidTransition), ErrInvalidState},
		{"missing row", repository.ErrNotFound, ErrNotFound},
		{"duplicate", repository.ErrDuplicate, ErrConflict},
		{"lock timeout", repository.ErrLockTimeout, ErrConflict},
		{"already classified", fmt.Errorf("%w: role missing", ErrConfiguration), ErrConfiguration},
		{"anything else", errors.New("boom"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, classify(nil))
}
