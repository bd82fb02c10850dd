package app

import (
	"context"
	"io"
	"time"

	"topli_chat/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

// Create mock create room
func (m *MockRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// FindByID mock find room by room id
func (m *MockRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// List mock list rooms
func (m *MockRoomRepository) List(ctx context.Context, filter domain.RoomFilter) ([]domain.Room, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateInfo mock update title/description
func (m *MockRoomRepository) UpdateInfo(ctx context.Context, roomID, title, description string) error {
	args := m.Called(ctx, roomID, title, description)
	return args.Error(0)
}

// SetStatus mock set status
func (m *MockRoomRepository) SetStatus(ctx context.Context, roomID string, status domain.RoomStatus) error {
	args := m.Called(ctx, roomID, status)
	return args.Error(0)
}

// AddParticipant mock add participant
func (m *MockRoomRepository) AddParticipant(ctx context.Context, roomID, uid string) error {
	args := m.Called(ctx, roomID, uid)
	return args.Error(0)
}

// RemoveParticipant mock remove participant
func (m *MockRoomRepository) RemoveParticipant(ctx context.Context, roomID, uid string) error {
	args := m.Called(ctx, roomID, uid)
	return args.Error(0)
}

// ApplyMessagePreview mock preview update
func (m *MockRoomRepository) ApplyMessagePreview(ctx context.Context, roomID, messageID string, preview domain.LastMessage, recipients []string) (bool, error) {
	args := m.Called(ctx, roomID, messageID, preview, recipients)
	return args.Bool(0), args.Error(1)
}

// ResetUnread mock reset room counter
func (m *MockRoomRepository) ResetUnread(ctx context.Context, roomID, uid string) error {
	args := m.Called(ctx, roomID, uid)
	return args.Error(0)
}

// Titles mock room titles
func (m *MockRoomRepository) Titles(ctx context.Context, roomIDs []string) (map[string]string, error) {
	args := m.Called(ctx, roomIDs)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// InsertWithEvent mock insert msg with outbox entry
func (m *MockMessageRepository) InsertWithEvent(ctx context.Context, msg *domain.Message, entry domain.OutboxEntry) error {
	args := m.Called(ctx, msg, entry)
	return args.Error(0)
}

// FindByID mock find msg
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListBefore mock page
func (m *MockMessageRepository) ListBefore(ctx context.Context, roomID string, before time.Time, limit int64) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, before, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateText mock edit
func (m *MockMessageRepository) UpdateText(ctx context.Context, messageID, text string, editedAt time.Time) error {
	args := m.Called(ctx, messageID, text, editedAt)
	return args.Error(0)
}

// Delete mock delete
func (m *MockMessageRepository) Delete(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// MockProfileRepository Mock ProfileRepository
type MockProfileRepository struct {
	mock.Mock
}

// FindByID mock find profile
func (m *MockProfileRepository) FindByID(ctx context.Context, uid string) (*domain.UnreadProfile, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.UnreadProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpsertContact mock upsert contact
func (m *MockProfileRepository) UpsertContact(ctx context.Context, uid, email, phone string) error {
	args := m.Called(ctx, uid, email, phone)
	return args.Error(0)
}

// UIDByEmail mock email lookup
func (m *MockProfileRepository) UIDByEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

// IncrementUnread mock increment
func (m *MockProfileRepository) IncrementUnread(ctx context.Context, uid, roomID string) error {
	args := m.Called(ctx, uid, roomID)
	return args.Error(0)
}

// MarkRoomRead mock mark read
func (m *MockProfileRepository) MarkRoomRead(ctx context.Context, uid, roomID string) (int, error) {
	args := m.Called(ctx, uid, roomID)
	return args.Int(0), args.Error(1)
}

// MockEventLedger Mock EventLedger
type MockEventLedger struct {
	mock.Mock
}

// Seen mock ledger lookup
func (m *MockEventLedger) Seen(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// Record mock ledger write
func (m *MockEventLedger) Record(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockInviteRepository Mock InviteRepository
type MockInviteRepository struct {
	mock.Mock
}

// Create mock create invite
func (m *MockInviteRepository) Create(ctx context.Context, inv *domain.Invite) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

// FindByID mock find invite
func (m *MockInviteRepository) FindByID(ctx context.Context, inviteID string) (*domain.Invite, error) {
	args := m.Called(ctx, inviteID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Invite), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkUsed mock mark used
func (m *MockInviteRepository) MarkUsed(ctx context.Context, inviteID, uid string, at time.Time) error {
	args := m.Called(ctx, inviteID, uid, at)
	return args.Error(0)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// PublishMessageCreated mock publish
func (m *MockEventPublisher) PublishMessageCreated(ctx context.Context, event domain.MessageCreated) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockOutboxRepository Mock OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

// Pending mock pending entries
func (m *MockOutboxRepository) Pending(ctx context.Context, olderThan time.Time, limit int64) ([]domain.OutboxEntry, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.OutboxEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkPublished mock mark published
func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockPublisher Mock redis Publisher
type MockPublisher struct {
	mock.Mock
}

// Publish mock publish
func (m *MockPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

// MockObjectStorage Mock ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

// PutObject mock upload
func (m *MockObjectStorage) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, r, size, contentType)
	return args.String(0), args.Error(1)
}

// RemoveObject mock remove
func (m *MockObjectStorage) RemoveObject(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

// ObjectName mock parse url
func (m *MockObjectStorage) ObjectName(fileURL string) (string, error) {
	args := m.Called(fileURL)
	return args.String(0), args.Error(1)
}

// MockAuthorDirectory Mock AuthorDirectory
type MockAuthorDirectory struct {
	mock.Mock
}

// DisplayInfo mock lookup
func (m *MockAuthorDirectory) DisplayInfo(ctx context.Context, uid string) (string, string, error) {
	args := m.Called(ctx, uid)
	return args.String(0), args.String(1), args.Error(2)
}
