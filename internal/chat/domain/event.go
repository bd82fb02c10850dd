package domain

import "time"

// MessageCreated emitted once per stored message, delivered at least once
type MessageCreated struct {
	RoomID        string    `bson:"room_id" json:"room_id"`
	MessageID     string    `bson:"message_id" json:"message_id"`
	AuthorID      string    `bson:"author_id" json:"author_id"`
	AuthorName    string    `bson:"author_name" json:"author_name"`
	Text          string    `bson:"text,omitempty" json:"text,omitempty"`
	HasAttachment bool      `bson:"has_attachment" json:"has_attachment"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// NewMessageCreated build the event for a stored message
func NewMessageCreated(m *Message) MessageCreated {
	return MessageCreated{
		RoomID:        m.RoomID,
		MessageID:     m.ID,
		AuthorID:      m.AuthorID,
		AuthorName:    m.AuthorName,
		Text:          m.Text,
		HasAttachment: m.Attachment != nil,
		CreatedAt:     m.CreatedAt,
	}
}

// Key idempotency key, one per message
func (e MessageCreated) Key() string {
	return e.RoomID + ":" + e.MessageID
}

// OutboxEntry message-created event written in the same transaction as the message
type OutboxEntry struct {
	ID          string         `bson:"_id"`
	Event       MessageCreated `bson:"event"`
	CreatedAt   time.Time      `bson:"created_at"`
	PublishedAt *time.Time     `bson:"published_at,omitempty"`
}

// NewOutboxEntry wrap the event of a stored message
func NewOutboxEntry(m *Message) OutboxEntry {
	event := NewMessageCreated(m)
	return OutboxEntry{
		ID:        event.Key(),
		Event:     event,
		CreatedAt: m.CreatedAt,
	}
}
