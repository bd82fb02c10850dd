package app

import (
	"context"
	"errors"
	"fmt"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"

	"go.uber.org/zap"
)

// ReadStateUseCase 已讀狀態
type ReadStateUseCase struct {
	profileRepo repository.ProfileRepository
	roomRepo    repository.RoomRepository
}

// NewReadStateUseCase init read state use case
func NewReadStateUseCase(p repository.ProfileRepository, r repository.RoomRepository) *ReadStateUseCase {
	return &ReadStateUseCase{
		profileRepo: p,
		roomRepo:    r,
	}
}

// MarkAsRead clear the caller's unread counter for one room. Returns the cleared count.
func (uc *ReadStateUseCase) MarkAsRead(ctx context.Context, uid, roomID string) (int, error) {
	if uid == "" {
		return 0, errprocess.Wrap(domain.ErrUnauthorized, "mark as read without caller")
	}
	if roomID == "" {
		return 0, errprocess.Wrap(domain.ErrInvalidArgument, "roomId is required", zap.String("uid", uid))
	}

	cleared, err := uc.profileRepo.MarkRoomRead(ctx, uid, roomID)
	if err != nil {
		return 0, fmt.Errorf("mark room read: %w", err)
	}

	// 聊天室上的計數另外歸零，失敗不影響結果
	if err := uc.roomRepo.ResetUnread(ctx, roomID, uid); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Log.Warn("reset room unread failed", zap.String("uid", uid), zap.String("room_id", roomID), zap.Error(err))
	}

	logger.Log.Debug("mark as read", zap.String("uid", uid), zap.String("room_id", roomID), zap.Int("cleared", cleared))
	return cleared, nil
}

// Summary caller's unread totals; a member without a profile has none
func (uc *ReadStateUseCase) Summary(ctx context.Context, uid string) (*domain.UnreadProfile, error) {
	if uid == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "unread summary without caller")
	}

	p, err := uc.profileRepo.FindByID(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.UnreadProfile{UID: uid, UnreadRooms: map[string]int{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
