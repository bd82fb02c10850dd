package app

import (
	"context"
	"io"
	"time"

	"topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"

	"github.com/stretchr/testify/mock"
)

// MockUserRepo Mock UserRepository
type MockUserRepo struct {
	mock.Mock
}

// EnsureSchema mock schema
func (m *MockUserRepo) EnsureSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Upsert mock upsert
func (m *MockUserRepo) Upsert(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// FindByID mock find by uid
func (m *MockUserRepo) FindByID(ctx context.Context, uid string) (*domain.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByPhone mock find by phone
func (m *MockUserRepo) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListNotifiable mock list
func (m *MockUserRepo) ListNotifiable(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// SetPasswordHash mock password update
func (m *MockUserRepo) SetPasswordHash(ctx context.Context, uid, hash string) error {
	args := m.Called(ctx, uid, hash)
	return args.Error(0)
}

// PasswordHash mock password lookup
func (m *MockUserRepo) PasswordHash(ctx context.Context, uid string) (string, error) {
	args := m.Called(ctx, uid)
	return args.String(0), args.Error(1)
}

// MockOTPRepo Mock OTPRepository
type MockOTPRepo struct {
	mock.Mock
}

// SaveCode mock save
func (m *MockOTPRepo) SaveCode(ctx context.Context, phone string, code domain.OTPCode, ttl time.Duration) error {
	args := m.Called(ctx, phone, code, ttl)
	return args.Error(0)
}

// GetCode mock get
func (m *MockOTPRepo) GetCode(ctx context.Context, phone string) (domain.OTPCode, error) {
	args := m.Called(ctx, phone)
	return args.Get(0).(domain.OTPCode), args.Error(1)
}

// DeleteCode mock delete
func (m *MockOTPRepo) DeleteCode(ctx context.Context, phone string) error {
	args := m.Called(ctx, phone)
	return args.Error(0)
}

// TryReserveSend mock rate limit
func (m *MockOTPRepo) TryReserveSend(ctx context.Context, phone string, window time.Duration) (bool, int, error) {
	args := m.Called(ctx, phone, window)
	return args.Bool(0), args.Int(1), args.Error(2)
}

// MockResetRepo Mock ResetRepository
type MockResetRepo struct {
	MockOTPRepo
}

// SaveSession mock save session
func (m *MockResetRepo) SaveSession(ctx context.Context, email string, session domain.OTPCode, ttl time.Duration) error {
	args := m.Called(ctx, email, session, ttl)
	return args.Error(0)
}

// GetSession mock get session
func (m *MockResetRepo) GetSession(ctx context.Context, email string) (domain.OTPCode, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(domain.OTPCode), args.Error(1)
}

// DeleteSession mock delete session
func (m *MockResetRepo) DeleteSession(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockContactStore Mock ContactStore
type MockContactStore struct {
	mock.Mock
}

// UpsertContact mock upsert
func (m *MockContactStore) UpsertContact(ctx context.Context, uid, email, phone string) error {
	args := m.Called(ctx, uid, email, phone)
	return args.Error(0)
}

// UIDByEmail mock email lookup
func (m *MockContactStore) UIDByEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

// MockNotifier Mock Notifier
type MockNotifier struct {
	mock.Mock
}

// SendSMS mock sms
func (m *MockNotifier) SendSMS(ctx context.Context, phone, text string) error {
	args := m.Called(ctx, phone, text)
	return args.Error(0)
}

// SendEmail mock email
func (m *MockNotifier) SendEmail(ctx context.Context, msg notifydomain.EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockAvatarStorage Mock AvatarStorage
type MockAvatarStorage struct {
	mock.Mock
}

// PutObject mock upload
func (m *MockAvatarStorage) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, r, size, contentType)
	return args.String(0), args.Error(1)
}
