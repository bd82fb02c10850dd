package app

import (
	"context"
	"time"

	"topli_chat/internal/chat/domain"
	memberdomain "topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"

	"github.com/stretchr/testify/mock"
)

// MockLockRepository Mock LockRepository
type MockLockRepository struct {
	mock.Mock
}

// Acquire mock acquire
func (m *MockLockRepository) Acquire(ctx context.Context, name string, now time.Time, cooldown time.Duration) error {
	args := m.Called(ctx, name, now, cooldown)
	return args.Error(0)
}

// Get mock get lock
func (m *MockLockRepository) Get(ctx context.Context, name string) (*notifydomain.DigestLock, error) {
	args := m.Called(ctx, name)
	if args.Get(0) != nil {
		return args.Get(0).(*notifydomain.DigestLock), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserLister Mock UserLister
type MockUserLister struct {
	mock.Mock
}

// ListNotifiable mock list users
func (m *MockUserLister) ListNotifiable(ctx context.Context) ([]memberdomain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]memberdomain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProfileReader Mock ProfileReader
type MockProfileReader struct {
	mock.Mock
}

// FindByID mock find profile
func (m *MockProfileReader) FindByID(ctx context.Context, uid string) (*domain.UnreadProfile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.UnreadProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockTitleReader Mock TitleReader
type MockTitleReader struct {
	mock.Mock
}

// Titles mock room titles
func (m *MockTitleReader) Titles(ctx context.Context, roomIDs []string) (map[string]string, error) {
	args := m.Called(ctx, roomIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockSender Mock provider.Sender
type MockSender struct {
	mock.Mock
}

// SendEmail mock email
func (m *MockSender) SendEmail(ctx context.Context, msg notifydomain.EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// SendSMS mock sms
func (m *MockSender) SendSMS(ctx context.Context, phone, text string) error {
	args := m.Called(ctx, phone, text)
	return args.Error(0)
}

// SendWhatsApp mock whatsapp
func (m *MockSender) SendWhatsApp(ctx context.Context, phone, text string) error {
	args := m.Called(ctx, phone, text)
	return args.Error(0)
}

// MockDigestRunner Mock DigestRunner
type MockDigestRunner struct {
	mock.Mock
}

// Run mock digest run
func (m *MockDigestRunner) Run(ctx context.Context) (*notifydomain.DigestReport, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).(*notifydomain.DigestReport), args.Error(1)
	}
	return nil, args.Error(1)
}
