package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"
	"topli_chat/pkg/token"

	"go.uber.org/zap"
)

// MaxUploadSize attachment size limit
const MaxUploadSize = 20 << 20

// ObjectStorage attachment bucket
type ObjectStorage interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error)
	RemoveObject(ctx context.Context, objectName string) error
	ObjectName(fileURL string) (string, error)
}

// FileUseCase 聊天室附件上傳與刪除
type FileUseCase struct {
	storage  ObjectStorage
	roomRepo repository.RoomRepository
	now      func() time.Time
}

// NewFileUseCase init file use case
func NewFileUseCase(s ObjectStorage, r repository.RoomRepository) *FileUseCase {
	return &FileUseCase{
		storage:  s,
		roomRepo: r,
		now:      time.Now,
	}
}

// ObjectKey rooms/{roomId}/files/{unixms}_{userId}.{ext}
func ObjectKey(roomID, uid, fileName string, at time.Time) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("rooms/%s/files/%d_%s.%s", roomID, at.UnixMilli(), uid, ext)
}

// Upload store an attachment for a room the caller belongs to
func (uc *FileUseCase) Upload(ctx context.Context, callerID, roomID, fileName string, r io.Reader, size int64, contentType string) (*domain.Attachment, error) {
	if callerID == "" {
		return nil, errprocess.Wrap(domain.ErrUnauthorized, "upload without caller")
	}
	if roomID == "" || fileName == "" {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "roomId and file are required")
	}
	if size <= 0 || size > MaxUploadSize {
		return nil, errprocess.Wrap(domain.ErrInvalidArgument, "file size out of range", zap.Int64("size", size))
	}

	room, err := uc.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(callerID) {
		return nil, errprocess.Wrap(domain.ErrForbidden, "not a room participant", zap.String("room_id", roomID), zap.String("uid", callerID))
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := ObjectKey(roomID, callerID, fileName, uc.now())
	url, err := uc.storage.PutObject(ctx, key, r, size, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	logger.Log.Info("file uploaded", zap.String("room_id", roomID), zap.String("object", key), zap.Int64("size", size))
	return &domain.Attachment{URL: url, Name: fileName, Type: contentType}, nil
}

// Delete remove an attachment by its public URL; uploader or deleteMessages role
func (uc *FileUseCase) Delete(ctx context.Context, callerID string, role token.RoleType, fileURL string) error {
	if callerID == "" {
		return errprocess.Wrap(domain.ErrUnauthorized, "delete file without caller")
	}

	key, err := uc.storage.ObjectName(fileURL)
	if err != nil || !strings.HasPrefix(key, "rooms/") {
		return errprocess.Wrap(domain.ErrInvalidArgument, "not an attachment url", zap.String("url", fileURL))
	}

	base := filepath.Base(key)
	owned := strings.Contains(base, "_"+callerID+".")
	if !owned && !role.Can(token.PermDeleteMessages) {
		return errprocess.Wrap(domain.ErrForbidden, "not allowed to delete file", zap.String("object", key))
	}

	return uc.storage.RemoveObject(ctx, key)
}
