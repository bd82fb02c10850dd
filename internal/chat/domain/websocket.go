package domain

// Action websocket request action
type Action string

const (
	// EnterRoom websocket action enter_room, clears caller unread for the room
	EnterRoom Action = "enter_room"
	// GetUnread websocket action get_unread
	GetUnread Action = "get_unread"
	// NotifyUnread server push after a message fan-out
	NotifyUnread Action = "notify_unread"
)

// WSRequest websocket Request
type WSRequest struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// UnreadNotice published on chat:user:<uid> after a fan-out
type UnreadNotice struct {
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	Preview   string `json:"preview"`
}
