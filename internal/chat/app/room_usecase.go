package app

import (
	"context"
	"strings"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	"topli_chat/pkg"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoomUseCase 聊天室管理
type RoomUseCase struct {
	roomRepo repository.RoomRepository
	now      func() time.Time
}

// NewRoomUseCase init room use case
func NewRoomUseCase(r repository.RoomRepository) *RoomUseCase {
	return &RoomUseCase{
		roomRepo: r,
		now:      time.Now,
	}
}

// Create create room with the caller and the selected participants
func (uc *RoomUseCase) Create(ctx context.Context, callerID string, role token.RoleType, title, description string, participants []string) (*domain.Room, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "create room without caller")
	}
	if !role.Can(token.PermCreateRoom) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "role cannot create rooms", zap.String("role", string(role)))
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "room title is required")
	}

	members := pkg.UniqueNonEmpty(append([]string{callerID}, participants...)...)
	unread := make(map[string]int, len(members))
	for _, uid := range members {
		unread[uid] = 0
	}

	room := &domain.Room{
		ID:           uuid.New().String(),
		Title:        title,
		Description:  strings.TrimSpace(description),
		Status:       domain.RoomActive,
		CreatedBy:    callerID,
		CreatedAt:    uc.now().UTC(),
		Participants: members,
		UnreadCount:  unread,
	}

	if err := uc.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}

	logger.Log.Info("room created", zap.String("room_id", room.ID), zap.String("created_by", callerID), zap.Int("participants", len(members)))
	return room, nil
}

// List rooms visible to the caller: admin all, manager own, others joined
func (uc *RoomUseCase) List(ctx context.Context, callerID string, role token.RoleType, status domain.RoomStatus) ([]domain.Room, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "list rooms without caller")
	}
	if status == "" {
		status = domain.RoomActive
	}
	if !status.Valid() {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "unknown room status", zap.String("status", string(status)))
	}

	filter := domain.RoomFilter{Status: status}
	switch role {
	case token.RoleAdmin:
	case token.RoleManager:
		filter.CreatedBy = callerID
	default:
		filter.Participant = callerID
	}

	return uc.roomRepo.List(ctx, filter)
}

// Get room if the caller can see it
func (uc *RoomUseCase) Get(ctx context.Context, callerID string, role token.RoleType, roomID string) (*domain.Room, error) {
	room, err := uc.find(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if role != token.RoleAdmin && room.CreatedBy != callerID && !room.HasParticipant(callerID) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "not a room participant", zap.String("room_id", roomID), zap.String("uid", callerID))
	}
	return room, nil
}

// UpdateInfo change title and description
func (uc *RoomUseCase) UpdateInfo(ctx context.Context, callerID string, role token.RoleType, roomID, title, description string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errprocess.Wrap(domain.ErrInvalidArgument, "room title is required")
	}
	if _, err := uc.managed(ctx, callerID, role, roomID, token.PermCreateRoom); err != nil {
		return err
	}
	return uc.roomRepo.UpdateInfo(ctx, roomID, title, strings.TrimSpace(description))
}

// SetStatus activate or archive a room
func (uc *RoomUseCase) SetStatus(ctx context.Context, callerID string, role token.RoleType, roomID string, status domain.RoomStatus) error {
	if !status.Valid() {
		return errprocess.Wrap(domain.ErrInvalidArgument, "unknown room status", zap.String("status", string(status)))
	}
	if _, err := uc.managed(ctx, callerID, role, roomID, token.PermCreateRoom); err != nil {
		return err
	}
	return uc.roomRepo.SetStatus(ctx, roomID, status)
}

// AddParticipant add member to room
func (uc *RoomUseCase) AddParticipant(ctx context.Context, callerID string, role token.RoleType, roomID, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return errprocess.Wrap(domain.ErrInvalidArgument, "participant id is required")
	}
	if _, err := uc.managed(ctx, callerID, role, roomID, token.PermManageParticipants); err != nil {
		return err
	}
	return uc.roomRepo.AddParticipant(ctx, roomID, strings.TrimSpace(uid))
}

// RemoveParticipant remove member from room; the creator stays
func (uc *RoomUseCase) RemoveParticipant(ctx context.Context, callerID string, role token.RoleType, roomID, uid string) error {
	if uid == "" {
		return errprocess.Wrap(domain.ErrInvalidArgument, "participant id is required")
	}
	room, err := uc.managed(ctx, callerID, role, roomID, token.PermManageParticipants)
	if err != nil {
		return err
	}
	if uid == room.CreatedBy {
		return errprocess.Wrap(domain.ErrConflict, "room creator cannot be removed", zap.String("room_id", roomID))
	}
	return uc.roomRepo.RemoveParticipant(ctx, roomID, uid)
}

func (uc *RoomUseCase) find(ctx context.Context, roomID string) (*domain.Room, error) {
	if roomID == "" {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "roomId is required")
	}
	return uc.roomRepo.FindByID(ctx, roomID)
}

// managed 只有 admin 或具權限的建立者可以管理
func (uc *RoomUseCase) managed(ctx context.Context, callerID string, role token.RoleType, roomID string, p token.Permission) (*domain.Room, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "manage room without caller")
	}
	if !role.Can(p) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "role not allowed", zap.String("role", string(role)), zap.String("permission", string(p)))
	}

	room, err := uc.find(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if role != token.RoleAdmin && room.CreatedBy != callerID {
		return nil, errprocess.Wrap(domain.ErrForbidden, "not the room creator", zap.String("room_id", roomID), zap.String("uid", callerID))
	}
	return room, nil
}
