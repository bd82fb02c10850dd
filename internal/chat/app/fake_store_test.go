package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
)

// memRooms in-memory rooms; methods not overridden panic through the nil interface
type memRooms struct {
	repository.RoomRepository
	mu    sync.Mutex
	rooms map[string]*domain.Room
}

func newMemRooms(rooms ...*domain.Room) *memRooms {
	m := &memRooms{rooms: map[string]*domain.Room{}}
	for _, r := range rooms {
		if r.UnreadCount == nil {
			r.UnreadCount = map[string]int{}
		}
		m.rooms[r.ID] = r
	}
	return m
}

func (m *memRooms) FindByID(_ context.Context, roomID string) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRooms) ApplyMessagePreview(_ context.Context, roomID, messageID string, preview domain.LastMessage, recipients []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if r.Applied(messageID) {
		return false, nil
	}
	now := time.Now()
	r.LastMessage = &preview
	r.LastMessageAt = &now
	r.UnreadCount[preview.AuthorID] = 0
	for _, uid := range recipients {
		r.UnreadCount[uid]++
	}
	r.RecentMessageIDs = append(r.RecentMessageIDs, messageID)
	return true, nil
}

func (m *memRooms) ResetUnread(_ context.Context, roomID, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[roomID]
	if !ok || !r.HasParticipant(uid) {
		return domain.ErrNotFound
	}
	r.UnreadCount[uid] = 0
	return nil
}

func (m *memRooms) unread(roomID, uid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID].UnreadCount[uid]
}

// memProfiles in-memory ProfileRepository with failure injection and in-flight tracking
type memProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.UnreadProfile
	failFor  map[string]bool
	delay    time.Duration

	inFlight    int64
	maxInFlight int64
}

func newMemProfiles() *memProfiles {
	return &memProfiles{
		profiles: map[string]*domain.UnreadProfile{},
		failFor:  map[string]bool{},
	}
}

func (m *memProfiles) FindByID(_ context.Context, uid string) (*domain.UnreadProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	cp.UnreadRooms = map[string]int{}
	for k, v := range p.UnreadRooms {
		cp.UnreadRooms[k] = v
	}
	return &cp, nil
}

func (m *memProfiles) UpsertContact(_ context.Context, uid, email, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.get(uid)
	p.Email, p.Phone = email, phone
	return nil
}

func (m *memProfiles) UIDByEmail(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uid, p := range m.profiles {
		if p.Email == email {
			return uid, nil
		}
	}
	return "", domain.ErrNotFound
}

func (m *memProfiles) IncrementUnread(_ context.Context, uid, roomID string) error {
	n := atomic.AddInt64(&m.inFlight, 1)
	defer atomic.AddInt64(&m.inFlight, -1)
	for {
		cur := atomic.LoadInt64(&m.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt64(&m.maxInFlight, cur, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[uid] {
		return errors.New("profile write failed")
	}
	p := m.get(uid)
	p.UnreadTotal++
	p.UnreadRooms[roomID]++
	return nil
}

func (m *memProfiles) MarkRoomRead(_ context.Context, uid, roomID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return 0, nil
	}
	return p.ClearRoom(roomID), nil
}

func (m *memProfiles) get(uid string) *domain.UnreadProfile {
	p, ok := m.profiles[uid]
	if !ok {
		p = &domain.UnreadProfile{UID: uid, UnreadRooms: map[string]int{}}
		m.profiles[uid] = p
	}
	return p
}

func (m *memProfiles) snapshot(uid string) *domain.UnreadProfile {
	p, err := m.FindByID(context.Background(), uid)
	if err != nil {
		return &domain.UnreadProfile{UID: uid, UnreadRooms: map[string]int{}}
	}
	return p
}

// memLedger in-memory EventLedger
type memLedger struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemLedger() *memLedger {
	return &memLedger{keys: map[string]bool{}}
}

func (l *memLedger) Seen(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys[key], nil
}

func (l *memLedger) Record(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = true
	return nil
}
