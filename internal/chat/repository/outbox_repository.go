package repository

import (
	"context"
	"fmt"
	"time"

	"topli_chat/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OutboxCollection message-created events waiting for the broker
const OutboxCollection = "message_outbox"

// OutboxRepository pending message-created events
type OutboxRepository interface {
	// Pending oldest first, created at or before olderThan and not yet published
	Pending(ctx context.Context, olderThan time.Time, limit int64) ([]domain.OutboxEntry, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
}

type outboxRepository struct {
	coll *mongo.Collection
}

// NewMongoOutboxRepository create an OutboxRepository
func NewMongoOutboxRepository(db *mongo.Database) OutboxRepository {
	return &outboxRepository{
		coll: db.Collection(OutboxCollection),
	}
}

func (r *outboxRepository) Pending(ctx context.Context, olderThan time.Time, limit int64) ([]domain.OutboxEntry, error) {
	filter := bson.M{
		"published_at": bson.M{"$exists": false},
		"created_at":   bson.M{"$lte": olderThan},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	entries := []domain.OutboxEntry{}
	if err := cur.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	return entries, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"published_at": at}})
	return err
}
