package service

import (
	"context"
	"sync"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/mock"

	"voluntia-backend/internal/domain"
)

type MockWelcomeNotifier struct {
	mock.Mock
}

func (m *MockWelcomeNotifier) NotifyApproved(ctx context.Context, user *domain.User, app *domain.Application, temporaryPassword string) error {
	args := m.Called(ctx, user, app, temporaryPassword)
	return args.Error(0)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockSendGridClient struct {
	mock.Mock
}

func (m *MockSendGridClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rest.Response), args.Error(1)
}

type observation struct {
	transition domain.Transition
	outcome    string
}

// recordingObserver collects transition outcomes from concurrent callers.
type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveTransition(t domain.Transition, outcome string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{transition: t, outcome: outcome})
}

func (r *recordingObserver) count(t domain.Transition, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.obs {
		if o.transition == t && o.outcome == outcome {
			n++
		}
	}
	return n
}
