package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ProcessedEventsCollection idempotency ledger for message-created events
const ProcessedEventsCollection = "processed_events"

// EventLedger record of fully handled events
type EventLedger interface {
	Seen(ctx context.Context, key string) (bool, error)
	// Record mark key handled; recording twice is not an error
	Record(ctx context.Context, key string) error
}

type eventLedger struct {
	coll *mongo.Collection
}

// NewMongoEventLedger create an EventLedger
func NewMongoEventLedger(db *mongo.Database) EventLedger {
	return &eventLedger{
		coll: db.Collection(ProcessedEventsCollection),
	}
}

func (l *eventLedger) Seen(ctx context.Context, key string) (bool, error) {
	n, err := l.coll.CountDocuments(ctx, bson.M{"_id": key})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *eventLedger) Record(ctx context.Context, key string) error {
	_, err := l.coll.InsertOne(ctx, bson.M{"_id": key, "handled_at": time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}
