package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/repository/repotest"
)

func TestIntakeService_SubmitApplication(t *testing.T) {
	store := repotest.NewStore()
	svc := NewIntakeService(store, store.Repositories().Users)
	ctx := context.Background()

	phone := "+49 30 1234567"
	app, err := svc.SubmitApplication(ctx, SubmitApplicationInput{
		Name:           "  Grace Hopper ",
		Email:          " Grace@Example.COM",
		Phone:          &phone,
		MembershipType: domain.MembershipTypeMember,
		Motivation:     strPtr("I want to help"),
		AdditionalData: domain.AdditionalData{"profession": "engineer"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ApplicationStatusPending, app.Status)
	assert.Equal(t, domain.MembershipTypeMember, app.DesiredMembershipType)
	require.NotNil(t, app.User)
	assert.Equal(t, "grace@example.com", app.User.Email)
	assert.Equal(t, "Grace Hopper", app.User.Name)
	assert.False(t, app.User.HasPassword())

	stored, err := store.Repositories().Applications.GetByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, app.User.ID, stored.UserID)
	assert.Equal(t, "engineer", stored.AdditionalData["profession"])
	assert.Equal(t, 1, store.Commits())
}

func TestIntakeService_SubmitApplication_Rejects(t *testing.T) {
	store := repotest.NewStore()
	svc := NewIntakeService(store, store.Repositories().Users)
	ctx := context.Background()

	_, err := svc.SubmitApplication(ctx, SubmitApplicationInput{
		Name: "Existing", Email: "taken@example.com", MembershipType: domain.MembershipTypeCommunity,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   SubmitApplicationInput
		wantErr error
	}{
		{
			name:    "duplicate email in different case",
			input:   SubmitApplicationInput{Name: "Again", Email: "TAKEN@example.com", MembershipType: domain.MembershipTypeSupporter},
			wantErr: ErrConflict,
		},
		{
			name:    "unknown membership type",
			input:   SubmitApplicationInput{Name: "New", Email: "new@example.com", MembershipType: "vip"},
			wantErr: ErrValidation,
		},
		{
			name:    "missing name",
			input:   SubmitApplicationInput{Name: "  ", Email: "new@example.com", MembershipType: domain.MembershipTypeCommunity},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitApplication(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	page, _, err := store.Repositories().Applications.List(ctx, domain.ApplicationFilter{})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestIntakeService_SubmitApplication_ConcurrentDuplicates(t *testing.T) {
	store := repotest.NewStore()
	svc := NewIntakeService(store, store.Repositories().Users)
	ctx := context.Background()

	const callers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitApplication(ctx, SubmitApplicationInput{
				Name: "Twin", Email: "twin@example.com", MembershipType: domain.MembershipTypeCommunity,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, conflicts)

	apps, total, err := store.Repositories().Applications.List(ctx, domain.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int32(1), total)
	assert.Len(t, apps, 1)
}

func TestIntakeService_SubmitApplication_StoreFailure(t *testing.T) {
	store := repotest.NewStore()
	store.FailOn("Applications.Create", errors.New("disk full"))
	svc := NewIntakeService(store, store.Repositories().Users)
	ctx := context.Background()

	_, err := svc.SubmitApplication(ctx, SubmitApplicationInput{
		Name: "Lost", Email: "lost@example.com", MembershipType: domain.MembershipTypeCommunity,
	})
	require.ErrorIs(t, err, ErrInternal)

	// The applicant row is rolled back with the application.
	_, err = store.Repositories().Users.GetByEmail(ctx, "lost@example.com")
	assert.Error(t, err)
}
