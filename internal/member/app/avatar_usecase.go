package app

import (
	"context"
	"fmt"
	"strings"

	chatdomain "topli_chat/internal/chat/domain"
	"topli_chat/internal/member/domain"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"go.uber.org/zap"
)

// UploadAvatar 上傳頭像並更新 photo_url；admin 可以替其他人上傳
func (m *memberUseCase) UploadAvatar(ctx context.Context, callerID string, callerRole token.RoleType, in domain.AvatarUpload) (*domain.User, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(chatdomain.ErrUnauthorized, "upload avatar without caller")
	}
	if in.UID == "" {
		in.UID = callerID
	}
	if in.UID != callerID && callerRole != token.RoleAdmin {
		return nil, errprocess.Wrap(chatdomain.ErrForbidden, "cannot upload another user's avatar", zap.String("uid", in.UID))
	}
	if strings.TrimSpace(in.FileName) == "" || in.Body == nil {
		return nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "uid and file are required")
	}
	if in.Size <= 0 || in.Size > domain.MaxAvatarSize {
		return nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "avatar size out of range", zap.Int64("size", in.Size))
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return nil, errprocess.Wrap(chatdomain.ErrInvalidArgument, "avatar must be an image", zap.String("content_type", in.ContentType))
	}

	user, err := m.userRepo.FindByID(ctx, in.UID)
	if err != nil {
		return nil, err
	}

	key := domain.AvatarObjectKey(in.UID, in.FileName)
	url, err := m.avatars.PutObject(ctx, key, in.Body, in.Size, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar %s: %w", key, err)
	}

	user.PhotoURL = url
	user.UpdatedAt = m.now().UTC()
	if err := m.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}

	logger.Log.Info("avatar uploaded", zap.String("uid", in.UID), zap.String("object", key))
	return user, nil
}
