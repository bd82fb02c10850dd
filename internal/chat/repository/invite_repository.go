package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topli_chat/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// InvitesCollection mongo collection for invite links
const InvitesCollection = "invites"

// InviteRepository definition invite link storage
type InviteRepository interface {
	Create(ctx context.Context, inv *domain.Invite) error
	FindByID(ctx context.Context, inviteID string) (*domain.Invite, error)
	// MarkUsed 只會成功一次，重複使用回傳 ErrConflict
	MarkUsed(ctx context.Context, inviteID, uid string, at time.Time) error
}

type inviteRepository struct {
	coll *mongo.Collection
}

// NewMongoInviteRepository create an InviteRepository
func NewMongoInviteRepository(db *mongo.Database) InviteRepository {
	return &inviteRepository{
		coll: db.Collection(InvitesCollection),
	}
}

func (r *inviteRepository) Create(ctx context.Context, inv *domain.Invite) error {
	_, err := r.coll.InsertOne(ctx, inv)
	return err
}

func (r *inviteRepository) FindByID(ctx context.Context, inviteID string) (*domain.Invite, error) {
	var inv domain.Invite
	err := r.coll.FindOne(ctx, bson.M{"_id": inviteID}).Decode(&inv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("invite %s: %w", inviteID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *inviteRepository) MarkUsed(ctx context.Context, inviteID, uid string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": inviteID, "used": false},
		bson.M{"$set": bson.M{"used": true, "used_by": uid, "used_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("invite %s already used: %w", inviteID, domain.ErrConflict)
	}
	return nil
}
