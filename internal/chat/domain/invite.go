package domain

import "time"

// InviteTTL invite link lifetime
const InviteTTL = 7 * 24 * time.Hour

// Invite 加入聊天室的邀請連結
type Invite struct {
	ID        string     `bson:"_id" json:"id"`
	RoomID    string     `bson:"room_id" json:"room_id"`
	CreatedBy string     `bson:"created_by" json:"created_by"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	Used      bool       `bson:"used" json:"used"`
	UsedBy    string     `bson:"used_by,omitempty" json:"used_by,omitempty"`
	UsedAt    *time.Time `bson:"used_at,omitempty" json:"used_at,omitempty"`
}

// Expired check invite against now
func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
