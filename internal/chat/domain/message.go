package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// PreviewMaxRunes max preview length before the ellipsis is added
	PreviewMaxRunes = 35
	// PreviewPhoto placeholder for attachment-only messages
	PreviewPhoto = "Photo"
	// PreviewMessage placeholder for empty messages
	PreviewMessage = "Message"

	// EditWindow own messages can be edited within this window
	EditWindow = 15 * time.Minute
)

// Attachment file attached to a message
type Attachment struct {
	URL  string `bson:"url" json:"url"`
	Name string `bson:"name" json:"name"`
	Type string `bson:"type" json:"type"`
}

// Message definition chat message
type Message struct {
	ID          string      `bson:"_id" json:"id"`
	RoomID      string      `bson:"room_id" json:"room_id"`
	Text        string      `bson:"text,omitempty" json:"text,omitempty"`
	AuthorID    string      `bson:"author_id" json:"author_id"`
	AuthorName  string      `bson:"author_name" json:"author_name"`
	AuthorPhoto string      `bson:"author_photo,omitempty" json:"author_photo,omitempty"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
	EditedAt    *time.Time  `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	Attachment  *Attachment `bson:"attachment,omitempty" json:"attachment,omitempty"`
}

// BuildPreview 產生聊天室列表的預覽文字
func BuildPreview(text string, hasAttachment bool) string {
	preview := strings.TrimSpace(text)
	if preview == "" {
		if hasAttachment {
			return PreviewPhoto
		}
		return PreviewMessage
	}

	if utf8.RuneCountInString(preview) > PreviewMaxRunes {
		return string([]rune(preview)[:PreviewMaxRunes]) + "..."
	}
	return preview
}
