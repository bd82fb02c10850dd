package repository

import (
	"context"
	"errors"
	"fmt"

	"topli_chat/internal/chat/domain"
	"topli_chat/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfilesCollection mongo collection for private user records
const ProfilesCollection = "users_private"

// ProfileRepository definition per-user unread aggregate
type ProfileRepository interface {
	FindByID(ctx context.Context, uid string) (*domain.UnreadProfile, error)
	UpsertContact(ctx context.Context, uid, email, phone string) error
	// UIDByEmail owner of a private email; ErrNotFound when nobody saved it
	UIDByEmail(ctx context.Context, email string) (string, error)
	// IncrementUnread atomic +1 on unread_total and unread_rooms.<roomID>, creating the record if needed
	IncrementUnread(ctx context.Context, uid, roomID string) error
	// MarkRoomRead 交易內清除單一聊天室未讀，回傳清除的數量
	MarkRoomRead(ctx context.Context, uid, roomID string) (int, error)
}

type profileRepository struct {
	coll *mongo.Collection
}

// NewMongoProfileRepository create a ProfileRepository
func NewMongoProfileRepository(db *mongo.Database) ProfileRepository {
	return &profileRepository{
		coll: db.Collection(ProfilesCollection),
	}
}

func (r *profileRepository) FindByID(ctx context.Context, uid string) (*domain.UnreadProfile, error) {
	var p domain.UnreadProfile
	err := r.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("profile %s: %w", uid, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) UpsertContact(ctx context.Context, uid, email, phone string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{
			"$set":         bson.M{"email": email, "phone": phone},
			"$setOnInsert": bson.M{"unread_total": 0},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *profileRepository) UIDByEmail(ctx context.Context, email string) (string, error) {
	var p domain.UnreadProfile
	err := r.coll.FindOne(ctx,
		bson.M{"email": email},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("email %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return p.UID, nil
}

func (r *profileRepository) IncrementUnread(ctx context.Context, uid, roomID string) error {
	inc := bson.M{"unread_total": 1}
	inc["unread_rooms."+roomID] = 1

	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": uid},
		bson.M{"$inc": inc},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *profileRepository) MarkRoomRead(ctx context.Context, uid, roomID string) (int, error) {
	res, err := database.RunTransaction(ctx, r.coll.Database().Client(), func(sessCtx mongo.SessionContext) (interface{}, error) {
		var p domain.UnreadProfile
		err := r.coll.FindOne(sessCtx, bson.M{"_id": uid}).Decode(&p)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}

		cleared := p.ClearRoom(roomID)
		if cleared == 0 {
			return 0, nil
		}

		_, err = r.coll.UpdateOne(sessCtx,
			bson.M{"_id": uid},
			bson.M{
				"$set":   bson.M{"unread_total": p.UnreadTotal},
				"$unset": bson.M{"unread_rooms." + roomID: ""},
			},
		)
		if err != nil {
			return 0, err
		}
		return cleared, nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark room read transaction: %w", err)
	}

	cleared, _ := res.(int)
	return cleared, nil
}
