package repository

import (
	"context"
	"errors"
	"fmt"

	"topli_chat/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomsCollection mongo collection for rooms
const RoomsCollection = "rooms"

// RoomRepository definition chat room
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	FindByID(ctx context.Context, roomID string) (*domain.Room, error)
	List(ctx context.Context, filter domain.RoomFilter) ([]domain.Room, error)
	UpdateInfo(ctx context.Context, roomID, title, description string) error
	SetStatus(ctx context.Context, roomID string, status domain.RoomStatus) error
	AddParticipant(ctx context.Context, roomID, uid string) error
	RemoveParticipant(ctx context.Context, roomID, uid string) error
	// ApplyMessagePreview 一次更新預覽與所有人的未讀數；同一則訊息已套用過時回傳 false
	ApplyMessagePreview(ctx context.Context, roomID, messageID string, preview domain.LastMessage, recipients []string) (bool, error)
	ResetUnread(ctx context.Context, roomID, uid string) error
	Titles(ctx context.Context, roomIDs []string) (map[string]string, error)
}

type roomRepository struct {
	coll *mongo.Collection
}

// NewMongoRoomRepository create new mongo room repository
func NewMongoRoomRepository(db *mongo.Database) RoomRepository {
	return &roomRepository{
		coll: db.Collection(RoomsCollection),
	}
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	_, err := r.coll.InsertOne(ctx, room)
	return err
}

func (r *roomRepository) FindByID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.coll.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) List(ctx context.Context, f domain.RoomFilter) ([]domain.Room, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.CreatedBy != "" {
		filter["created_by"] = f.CreatedBy
	}
	if f.Participant != "" {
		filter["participants"] = f.Participant
	}

	// 有新訊息的聊天室排前面
	opts := options.Find().SetSort(bson.D{
		{Key: "last_message_at", Value: -1},
		{Key: "created_at", Value: -1},
	})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	rooms := []domain.Room{}
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	return rooms, nil
}

func (r *roomRepository) UpdateInfo(ctx context.Context, roomID, title, description string) error {
	return r.updateOne(ctx, roomID, bson.M{"$set": bson.M{"title": title, "description": description}})
}

func (r *roomRepository) SetStatus(ctx context.Context, roomID string, status domain.RoomStatus) error {
	return r.updateOne(ctx, roomID, bson.M{"$set": bson.M{"status": status}})
}

func (r *roomRepository) AddParticipant(ctx context.Context, roomID, uid string) error {
	return r.updateOne(ctx, roomID, bson.M{"$addToSet": bson.M{"participants": uid}})
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, roomID, uid string) error {
	return r.updateOne(ctx, roomID, bson.M{
		"$pull":  bson.M{"participants": uid},
		"$unset": bson.M{"unread_count." + uid: ""},
	})
}

func (r *roomRepository) ApplyMessagePreview(ctx context.Context, roomID, messageID string, preview domain.LastMessage, recipients []string) (bool, error) {
	update := bson.M{
		"$set": bson.M{
			"last_message":                     preview,
			"unread_count." + preview.AuthorID: 0,
		},
		// 使用 server 時間
		"$currentDate": bson.M{"last_message_at": true},
	}
	update["$push"] = bson.M{"recent_message_ids": bson.M{
		"$each":  bson.A{messageID},
		"$slice": -domain.RecentMessageWindow,
	}}

	if len(recipients) > 0 {
		inc := bson.M{}
		for _, uid := range recipients {
			inc["unread_count."+uid] = 1
		}
		update["$inc"] = inc
	}

	// 訊息 id 已在 recent_message_ids 時不會命中，計數與預覽只套用一次
	filter := bson.M{"_id": roomID, "recent_message_ids": bson.M{"$ne": messageID}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": roomID})
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	return false, nil
}

func (r *roomRepository) ResetUnread(ctx context.Context, roomID, uid string) error {
	// 只重設參與者自己的計數
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": roomID, "participants": uid},
		bson.M{"$set": bson.M{"unread_count." + uid: 0}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("room %s participant %s: %w", roomID, uid, domain.ErrNotFound)
	}
	return nil
}

func (r *roomRepository) Titles(ctx context.Context, roomIDs []string) (map[string]string, error) {
	titles := make(map[string]string, len(roomIDs))
	if len(roomIDs) == 0 {
		return titles, nil
	}

	opts := options.Find().SetProjection(bson.M{"title": 1})
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": roomIDs}}, opts)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID    string `bson:"_id"`
		Title string `bson:"title"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("cursor All error: %w", err)
	}
	for _, row := range rows {
		titles[row.ID] = row.Title
	}
	return titles, nil
}

func (r *roomRepository) updateOne(ctx context.Context, roomID string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": roomID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("room %s: %w", roomID, domain.ErrNotFound)
	}
	return nil
}
