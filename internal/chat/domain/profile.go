package domain

// UnreadProfile 使用者私有資料，跨聊天室的未讀彙總
type UnreadProfile struct {
	UID         string         `bson:"_id" json:"uid"`
	Email       string         `bson:"email,omitempty" json:"email,omitempty"`
	Phone       string         `bson:"phone,omitempty" json:"phone,omitempty"`
	UnreadTotal int            `bson:"unread_total" json:"unread_total"`
	UnreadRooms map[string]int `bson:"unread_rooms,omitempty" json:"unread_rooms,omitempty"`
}

// Consistent unread_total equals the sum of unread_rooms
func (p *UnreadProfile) Consistent() bool {
	sum := 0
	for _, n := range p.UnreadRooms {
		sum += n
	}
	return sum == p.UnreadTotal
}

// UnreadRoomIDs rooms with a positive counter
func (p *UnreadProfile) UnreadRoomIDs() []string {
	ids := make([]string, 0, len(p.UnreadRooms))
	for id, n := range p.UnreadRooms {
		if n > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ClearRoom drop the room counter and lower the total by it, floored at 0.
// Returns the cleared count; 0 means nothing changed.
func (p *UnreadProfile) ClearRoom(roomID string) int {
	n := p.UnreadRooms[roomID]
	if n <= 0 {
		return 0
	}

	delete(p.UnreadRooms, roomID)
	p.UnreadTotal -= n
	if p.UnreadTotal < 0 {
		p.UnreadTotal = 0
	}
	return n
}
