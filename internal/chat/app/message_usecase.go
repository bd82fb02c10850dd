package app

import (
	"context"
	"strings"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize messages per page
	DefaultPageSize = 50
	// MaxPageSize upper bound of a page
	MaxPageSize = 200
)

// AuthorDirectory resolve display name and photo of a member
type AuthorDirectory interface {
	DisplayInfo(ctx context.Context, uid string) (name, photo string, err error)
}

// MessageUseCase 負責處理聊天訊息
type MessageUseCase struct {
	roomRepo  repository.RoomRepository
	msgRepo   repository.MessageRepository
	outbox    repository.OutboxRepository
	events    repository.EventPublisher
	directory AuthorDirectory
	now       func() time.Time
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	roomRepo repository.RoomRepository,
	msgRepo repository.MessageRepository,
	outbox repository.OutboxRepository,
	events repository.EventPublisher,
	directory AuthorDirectory,
) *MessageUseCase {
	return &MessageUseCase{
		roomRepo:  roomRepo,
		msgRepo:   msgRepo,
		outbox:    outbox,
		events:    events,
		directory: directory,
		now:       time.Now,
	}
}

// Send store a message together with its outbox event, then try to publish right away.
// Events that fail here are published later by OutboxRelay.
func (uc *MessageUseCase) Send(ctx context.Context, callerID, roomID, text string, attachment *domain.Attachment) (*domain.Message, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "send message without caller")
	}
	if roomID == "" {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "roomId is required")
	}

	text = strings.TrimSpace(text)
	if attachment != nil && attachment.URL == "" {
		attachment = nil
	}
	if text == "" && attachment == nil {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "message needs text or attachment")
	}

	room, err := uc.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(callerID) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "not a room participant", zap.String("room_id", roomID), zap.String("uid", callerID))
	}
	if room.Status != domain.RoomActive {
		return nil, errprocess.Wrap(domain.ErrConflict, "room is inactive", zap.String("room_id", roomID))
	}

	msg := &domain.Message{
		ID:         uuid.New().String(),
		RoomID:     roomID,
		Text:       text,
		AuthorID:   callerID,
		CreatedAt:  uc.now().UTC(),
		Attachment: attachment,
	}

	if uc.directory != nil {
		name, photo, err := uc.directory.DisplayInfo(ctx, callerID)
		if err != nil {
			logger.Log.Warn("author lookup failed", zap.String("uid", callerID), zap.Error(err))
		}
		msg.AuthorName, msg.AuthorPhoto = name, photo
	}

	entry := domain.NewOutboxEntry(msg)
	if err := uc.msgRepo.InsertWithEvent(ctx, msg, entry); err != nil {
		return nil, err
	}

	if err := uc.events.PublishMessageCreated(ctx, entry.Event); err != nil {
		logger.Log.Warn("publish message created deferred to outbox relay",
			zap.String("room_id", roomID), zap.String("message_id", msg.ID), zap.Error(err))
		return msg, nil
	}
	if err := uc.outbox.MarkPublished(ctx, entry.ID, uc.now().UTC()); err != nil {
		// relay 會再送一次，reactor 以 message id 去重
		logger.Log.Warn("mark outbox published failed", zap.String("id", entry.ID), zap.Error(err))
	}

	return msg, nil
}

// List newest first, older than before when set
func (uc *MessageUseCase) List(ctx context.Context, callerID string, role token.RoleType, roomID string, before time.Time, limit int) ([]domain.Message, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "list messages without caller")
	}
	if roomID == "" {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "roomId is required")
	}

	room, err := uc.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if role != token.RoleAdmin && room.CreatedBy != callerID && !room.HasParticipant(callerID) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "not a room participant", zap.String("room_id", roomID), zap.String("uid", callerID))
	}

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return uc.msgRepo.ListBefore(ctx, roomID, before, int64(limit))
}

// Edit author changes text within the edit window
func (uc *MessageUseCase) Edit(ctx context.Context, callerID, messageID, text string) (*domain.Message, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "edit message without caller")
	}
	text = strings.TrimSpace(text)
	if messageID == "" || text == "" {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "messageId and text are required")
	}

	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != callerID {
		return nil, errprocess.Wrap(domain.ErrForbidden, "only the author can edit", zap.String("message_id", messageID))
	}

	now := uc.now().UTC()
	if now.Sub(msg.CreatedAt) > domain.EditWindow {
		return nil, errprocess.Wrap(domain.ErrConflict, "edit window closed", zap.String("message_id", messageID))
	}

	if err := uc.msgRepo.UpdateText(ctx, messageID, text, now); err != nil {
		return nil, err
	}
	msg.Text = text
	msg.EditedAt = &now
	return msg, nil
}

// Delete author or a role with deleteMessages removes a message
func (uc *MessageUseCase) Delete(ctx context.Context, callerID string, role token.RoleType, messageID string) error {
	if callerID == "" {
		return errprocess.Wrap(domain.ErrUnauthorized, "delete message without caller")
	}
	if messageID == "" {
		return errprocess.Wrap(domain.ErrInvalidArgument, "messageId is required")
	}

	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != callerID && !role.Can(token.PermDeleteMessages) {
		return errprocess.Wrap(domain.ErrForbidden, "not allowed to delete message", zap.String("message_id", messageID))
	}
	return uc.msgRepo.Delete(ctx, messageID)
}
