package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessagesCollection mongo collection for messages
const MessagesCollection = "messages"

// MessageRepository definition chat message storage
type MessageRepository interface {
	// InsertWithEvent 同一個交易寫入訊息與 outbox 事件
	InsertWithEvent(ctx context.Context, msg *domain.Message, entry domain.OutboxEntry) error
	FindByID(ctx context.Context, messageID string) (*domain.Message, error)
	// ListBefore 依時間新到舊，before 為零值時從最新開始
	ListBefore(ctx context.Context, roomID string, before time.Time, limit int64) ([]domain.Message, error)
	UpdateText(ctx context.Context, messageID, text string, editedAt time.Time) error
	Delete(ctx context.Context, messageID string) error
}

type messageRepository struct {
	coll   *mongo.Collection
	outbox *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &messageRepository{
		coll:   db.Collection(MessagesCollection),
		outbox: db.Collection(OutboxCollection),
	}
}

func (r *messageRepository) InsertWithEvent(ctx context.Context, msg *domain.Message, entry domain.OutboxEntry) error {
	_, err := database.RunTransaction(ctx, r.coll.Database().Client(), func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.coll.InsertOne(sessCtx, msg); err != nil {
			return nil, err
		}
		if _, err := r.outbox.InsertOne(sessCtx, entry); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("insert message transaction: %w", err)
	}
	return nil
}

func (r *messageRepository) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var msg domain.Message
	err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListBefore(ctx context.Context, roomID string, before time.Time, limit int64) ([]domain.Message, error) {
	filter := bson.M{"room_id": roomID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	messages := []domain.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) UpdateText(ctx context.Context, messageID, text string, editedAt time.Time) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": messageID}, bson.M{
		"$set": bson.M{"text": text, "edited_at": editedAt},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("message %s: %w", messageID, domain.ErrNotFound)
	}
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, messageID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": messageID})
	return err
}
