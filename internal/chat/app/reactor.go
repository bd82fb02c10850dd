package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	errprocess "topli_chat/pkg/err"
	"topli_chat/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultFanOutLimit profile updates in flight per message
const DefaultFanOutLimit = 16

// MessageReactor 新訊息寫入後更新聊天室預覽與每位參與者的未讀數
type MessageReactor struct {
	roomRepo    repository.RoomRepository
	profileRepo repository.ProfileRepository
	ledger      repository.EventLedger
	publisher   repository.Publisher
	fanOutLimit int64
}

// NewMessageReactor init reactor; publisher may be nil
func NewMessageReactor(
	roomRepo repository.RoomRepository,
	profileRepo repository.ProfileRepository,
	ledger repository.EventLedger,
	publisher repository.Publisher,
	fanOutLimit int,
) *MessageReactor {
	if fanOutLimit <= 0 {
		fanOutLimit = DefaultFanOutLimit
	}
	return &MessageReactor{
		roomRepo:    roomRepo,
		profileRepo: profileRepo,
		ledger:      ledger,
		publisher:   publisher,
		fanOutLimit: int64(fanOutLimit),
	}
}

// Handle apply one message-created event. Redelivery of a handled event is a no-op.
func (r *MessageReactor) Handle(ctx context.Context, event domain.MessageCreated) error {
	if event.RoomID == "" || event.MessageID == "" || event.AuthorID == "" {
		return errprocess.Wrap(domain.ErrInvalidArgument, "message created event missing ids",
			zap.String("room_id", event.RoomID), zap.String("message_id", event.MessageID), zap.String("author_id", event.AuthorID))
	}

	log := logger.Log.With(zap.String("room_id", event.RoomID), zap.String("message_id", event.MessageID))

	seen, err := r.ledger.Seen(ctx, event.Key())
	if err != nil {
		return fmt.Errorf("check event %s: %w", event.Key(), err)
	}
	if seen {
		log.Debug("message created already handled")
		return nil
	}

	room, err := r.roomRepo.FindByID(ctx, event.RoomID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("room gone, skip message created")
		return nil
	}
	if err != nil {
		return fmt.Errorf("find room: %w", err)
	}

	preview := domain.LastMessage{
		Text:       domain.BuildPreview(event.Text, event.HasAttachment),
		AuthorID:   event.AuthorID,
		AuthorName: event.AuthorName,
		HasFile:    event.HasAttachment,
	}
	recipients := room.Recipients(event.AuthorID)

	// 房間更新本身以 message id 去重，失敗時不留下任何紀錄，重送會重新套用
	applied, err := r.roomRepo.ApplyMessagePreview(ctx, room.ID, event.MessageID, preview, recipients)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("room removed before preview update")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply message preview: %w", err)
	}
	if !applied {
		log.Debug("message already applied to room")
		r.record(ctx, event.Key(), log)
		return nil
	}

	notified := r.fanOut(ctx, room.ID, recipients, log)
	r.notify(ctx, event, preview.Text, notified, log)
	r.record(ctx, event.Key(), log)

	log.Info("message fan-out done", zap.Int("recipients", len(recipients)), zap.Int("updated", len(notified)))
	return nil
}

// fanOut 並行更新每位收件人的未讀彙總，個別失敗只記錄
func (r *MessageReactor) fanOut(ctx context.Context, roomID string, recipients []string, log *logger.LogInfo) []string {
	var (
		sem     = semaphore.NewWeighted(r.fanOutLimit)
		wg      sync.WaitGroup
		mu      sync.Mutex
		updated = make([]string, 0, len(recipients))
	)

	for i, uid := range recipients {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn("fan-out interrupted", zap.Int("skipped", len(recipients)-i), zap.Error(err))
			break
		}

		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			defer sem.Release(1)

			if err := r.profileRepo.IncrementUnread(ctx, uid, roomID); err != nil {
				log.Error("increment unread failed", zap.String("uid", uid), zap.Error(err))
				return
			}

			mu.Lock()
			updated = append(updated, uid)
			mu.Unlock()
		}(uid)
	}

	wg.Wait()
	return updated
}

func (r *MessageReactor) notify(ctx context.Context, event domain.MessageCreated, preview string, uids []string, log *logger.LogInfo) {
	if r.publisher == nil {
		return
	}

	notice := domain.UnreadNotice{
		RoomID:    event.RoomID,
		MessageID: event.MessageID,
		Preview:   preview,
	}
	for _, uid := range uids {
		if err := r.publisher.Publish(ctx, repository.UserChannel(uid), notice); err != nil {
			log.Warn("publish unread notice failed", zap.String("uid", uid), zap.Error(err))
		}
	}
}

// record 寫入 ledger；失敗只記錄，房間層的去重仍然有效
func (r *MessageReactor) record(ctx context.Context, key string, log *logger.LogInfo) {
	if err := r.ledger.Record(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("record handled event failed", zap.String("key", key), zap.Error(err))
	}
}
