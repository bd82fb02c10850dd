package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topli_chat/internal/chat/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LocksCollection mongo collection for run-once locks
const LocksCollection = "system_locks"

// LockRepository definition digest run lock
type LockRepository interface {
	// Acquire 交易內檢查 last_run，冷卻期內回傳 ErrAlreadyExecuted，否則寫入 now
	Acquire(ctx context.Context, name string, now time.Time, cooldown time.Duration) error
	Get(ctx context.Context, name string) (*notifydomain.DigestLock, error)
}

type lockRepository struct {
	coll *mongo.Collection
}

// NewMongoLockRepository create a LockRepository
func NewMongoLockRepository(db *mongo.Database) LockRepository {
	return &lockRepository{
		coll: db.Collection(LocksCollection),
	}
}

func (r *lockRepository) Acquire(ctx context.Context, name string, now time.Time, cooldown time.Duration) error {
	_, err := database.RunTransaction(ctx, r.coll.Database().Client(), func(sessCtx mongo.SessionContext) (interface{}, error) {
		var lock notifydomain.DigestLock
		err := r.coll.FindOne(sessCtx, bson.M{"_id": name}).Decode(&lock)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return nil, err
		case !lock.Acquirable(now, cooldown):
			return nil, fmt.Errorf("lock %s last run %s: %w", name, lock.LastRun.Format(time.RFC3339), domain.ErrAlreadyExecuted)
		}

		_, err = r.coll.UpdateOne(sessCtx,
			bson.M{"_id": name},
			bson.M{"$set": bson.M{"last_run": now.UTC()}},
			options.Update().SetUpsert(true),
		)
		return nil, err
	})
	return err
}

func (r *lockRepository) Get(ctx context.Context, name string) (*notifydomain.DigestLock, error) {
	var lock notifydomain.DigestLock
	err := r.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&lock)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("lock %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}
