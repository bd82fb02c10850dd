package domain

import "time"

// RoomStatus room lifecycle status
type RoomStatus string

const (
	// RoomActive room accepts messages
	RoomActive RoomStatus = "active"
	// RoomInactive room archived
	RoomInactive RoomStatus = "inactive"
)

// Valid check status value
func (s RoomStatus) Valid() bool {
	return s == RoomActive || s == RoomInactive
}

// LastMessage 聊天室列表顯示的最後一則訊息摘要
type LastMessage struct {
	Text       string `bson:"text" json:"text"`
	AuthorID   string `bson:"author_id" json:"author_id"`
	AuthorName string `bson:"author_name" json:"author_name"`
	HasFile    bool   `bson:"has_file" json:"has_file"`
}

// Room definition chat room
type Room struct {
	ID            string         `bson:"_id" json:"id"`
	Title         string         `bson:"title" json:"title"`
	Description   string         `bson:"description,omitempty" json:"description,omitempty"`
	Status        RoomStatus     `bson:"status" json:"status"`
	CreatedBy     string         `bson:"created_by" json:"created_by"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	Participants  []string       `bson:"participants" json:"participants"`
	LastMessage   *LastMessage   `bson:"last_message,omitempty" json:"last_message,omitempty"`
	LastMessageAt *time.Time     `bson:"last_message_at,omitempty" json:"last_message_at,omitempty"`
	UnreadCount   map[string]int `bson:"unread_count,omitempty" json:"unread_count,omitempty"`

	// RecentMessageIDs 最近已套用到預覽與計數的訊息，重送時用來去重
	RecentMessageIDs []string `bson:"recent_message_ids,omitempty" json:"-"`
}

// RecentMessageWindow message ids kept on the room for redelivery detection
const RecentMessageWindow = 100

// Applied check messageID already counted on this room
func (r *Room) Applied(messageID string) bool {
	for _, id := range r.RecentMessageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}

// HasParticipant check uid is in the room
func (r *Room) HasParticipant(uid string) bool {
	for _, p := range r.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// Recipients participants other than author, in room order
func (r *Room) Recipients(authorID string) []string {
	out := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p != "" && p != authorID {
			out = append(out, p)
		}
	}
	return out
}

// RoomFilter list rooms query
type RoomFilter struct {
	Status      RoomStatus
	CreatedBy   string // manager 只看自己建立的
	Participant string // 一般角色只看自己參與的
}
