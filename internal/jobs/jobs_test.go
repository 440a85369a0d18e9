package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voluntia-backend/internal/config"
	"voluntia-backend/internal/domain"
	"voluntia-backend/internal/repository"
	"voluntia-backend/internal/repository/repotest"
)

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendWelcome(ctx context.Context, user *domain.User, membershipType domain.MembershipType, temporaryPassword string) error {
	args := m.Called(ctx, user, membershipType, temporaryPassword)
	return args.Error(0)
}

func (m *MockEmailService) SendCallReminder(ctx context.Context, user *domain.User, callAt time.Time) error {
	args := m.Called(ctx, user, callAt)
	return args.Error(0)
}

func (m *MockEmailService) SendPendingDigest(ctx context.Context, to []domain.User, pendingCount int32, olderThan time.Duration) error {
	args := m.Called(ctx, to, pendingCount, olderThan)
	return args.Error(0)
}

type jobRun struct {
	job     string
	success bool
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []jobRun
}

func (r *fakeRecorder) RecordJobRun(job string, success bool, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, jobRun{job: job, success: success})
}

func testConfig() *config.Config {
	return &config.Config{Scheduler: config.SchedulerConfig{PendingDigestAfterDays: 3}}
}

func addApplicant(t *testing.T, repos repository.Repositories, email string, status domain.ApplicationStatus, callAt *time.Time) *domain.Application {
	t.Helper()
	ctx := context.Background()
	user := &domain.User{Name: "Applicant", Email: email}
	require.NoError(t, repos.Users.Create(ctx, user))
	app := &domain.Application{
		UserID:                user.ID,
		DesiredMembershipType: domain.MembershipTypeCommunity,
		Status:                status,
		CallScheduledAt:       callAt,
	}
	require.NoError(t, repos.Applications.Create(ctx, app))
	return app
}

func addAdmin(t *testing.T, repos repository.Repositories, email string) {
	t.Helper()
	ctx := context.Background()
	role, err := repos.Roles.GetBySlug(ctx, domain.RoleSlugAdmin)
	if errors.Is(err, repository.ErrNotFound) {
		role = &domain.Role{Name: "Admin", Slug: domain.RoleSlugAdmin}
		require.NoError(t, repos.Roles.Upsert(ctx, role))
	}
	admin := &domain.User{Name: "Admin", Email: email}
	require.NoError(t, repos.Users.Create(ctx, admin))
	require.NoError(t, repos.Users.AddRole(ctx, admin.ID, role.ID))
}

func TestSendPendingApplicationsDigest(t *testing.T) {
	store := repotest.NewStore()
	repos := store.Repositories()
	addApplicant(t, repos, "one@example.com", domain.ApplicationStatusPending, nil)
	addApplicant(t, repos, "two@example.com", domain.ApplicationStatusPending, nil)
	addApplicant(t, repos, "done@example.com", domain.ApplicationStatusDeclined, nil)
	addAdmin(t, repos, "admin@voluntia.org")

	email := new(MockEmailService)
	recorder := &fakeRecorder{}
	jr := NewJobRunner(repos, email, recorder, testConfig())

	t.Run("nothing stale yet", func(t *testing.T) {
		require.NoError(t, jr.SendPendingApplicationsDigest())
		email.AssertNotCalled(t, "SendPendingDigest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("stale applications", func(t *testing.T) {
		jr.now = func() time.Time { return time.Now().Add(4 * 24 * time.Hour) }
		email.On("SendPendingDigest", mock.Anything,
			mock.MatchedBy(func(to []domain.User) bool { return len(to) == 1 && to[0].Email == "admin@voluntia.org" }),
			int32(2), 72*time.Hour).Return(nil).Once()

		require.NoError(t, jr.SendPendingApplicationsDigest())
		email.AssertExpectations(t)
	})

	assert.Equal(t, []jobRun{{JobPendingDigest, true}, {JobPendingDigest, true}}, recorder.runs)
}

func TestSendPendingApplicationsDigest_NoAdmins(t *testing.T) {
	store := repotest.NewStore()
	repos := store.Repositories()
	addApplicant(t, repos, "one@example.com", domain.ApplicationStatusPending, nil)

	email := new(MockEmailService)
	jr := NewJobRunner(repos, email, nil, testConfig())
	jr.now = func() time.Time { return time.Now().Add(4 * 24 * time.Hour) }

	assert.NoError(t, jr.SendPendingApplicationsDigest())
	email.AssertNotCalled(t, "SendPendingDigest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendUpcomingCallReminders(t *testing.T) {
	store := repotest.NewStore()
	repos := store.Repositories()
	now := time.Now().UTC()

	due := now.Add(23*time.Hour + 30*time.Minute)
	soon := now.Add(2 * time.Hour)
	later := now.Add(24*time.Hour + time.Minute)
	addApplicant(t, repos, "due@example.com", domain.ApplicationStatusCallScheduled, &due)
	addApplicant(t, repos, "soon@example.com", domain.ApplicationStatusCallScheduled, &soon)
	addApplicant(t, repos, "later@example.com", domain.ApplicationStatusCallScheduled, &later)

	email := new(MockEmailService)
	email.On("SendCallReminder", mock.Anything,
		mock.MatchedBy(func(u *domain.User) bool { return u.Email == "due@example.com" }),
		mock.MatchedBy(func(at time.Time) bool { return at.Equal(due) })).Return(nil).Once()

	recorder := &fakeRecorder{}
	jr := NewJobRunner(repos, email, recorder, testConfig())
	jr.now = func() time.Time { return now }

	require.NoError(t, jr.SendUpcomingCallReminders())
	email.AssertExpectations(t)
	email.AssertNumberOfCalls(t, "SendCallReminder", 1)
	assert.Equal(t, []jobRun{{JobCallReminders, true}}, recorder.runs)
}

func TestSendUpcomingCallReminders_FailureIsRecorded(t *testing.T) {
	store := repotest.NewStore()
	repos := store.Repositories()
	now := time.Now().UTC()
	due := now.Add(23*time.Hour + 10*time.Minute)
	addApplicant(t, repos, "due@example.com", domain.ApplicationStatusCallScheduled, &due)

	email := new(MockEmailService)
	email.On("SendCallReminder", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("queue full")).Once()

	recorder := &fakeRecorder{}
	jr := NewJobRunner(repos, email, recorder, testConfig())
	jr.now = func() time.Time { return now }

	assert.Error(t, jr.SendUpcomingCallReminders())
	assert.Equal(t, []jobRun{{JobCallReminders, false}}, recorder.runs)
}

func TestRunWithRecovery_Panic(t *testing.T) {
	recorder := &fakeRecorder{}
	jr := NewJobRunner(repository.Repositories{}, nil, recorder, testConfig())

	err := jr.runWithRecovery("explodes", func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []jobRun{{"explodes", false}}, recorder.runs)
}
