package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memOutbox in-memory OutboxRepository
type memOutbox struct {
	mu      sync.Mutex
	entries map[string]*domain.OutboxEntry
}

func newMemOutbox() *memOutbox {
	return &memOutbox{entries: map[string]*domain.OutboxEntry{}}
}

func (o *memOutbox) add(entry domain.OutboxEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[entry.ID] = &entry
}

func (o *memOutbox) Pending(_ context.Context, olderThan time.Time, limit int64) ([]domain.OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []domain.OutboxEntry{}
	for _, e := range o.entries {
		if e.PublishedAt == nil && !e.CreatedAt.After(olderThan) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (o *memOutbox) MarkPublished(_ context.Context, id string, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.entries[id]; ok {
		e.PublishedAt = &at
	}
	return nil
}

// directBroker 直接把事件交給 reactor，down 時回傳錯誤
type directBroker struct {
	down    bool
	reactor *MessageReactor
}

func (b *directBroker) PublishMessageCreated(ctx context.Context, event domain.MessageCreated) error {
	if b.down {
		return errors.New("broker unavailable")
	}
	return b.reactor.Handle(ctx, event)
}

// broker 中斷期間送出的訊息，恢復後由 relay 補送並只計數一次
func TestOutboxRelay_DeliversMessageSentDuringOutage(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()

	rooms := newMemRooms(&domain.Room{ID: "r1", Status: domain.RoomActive, Participants: []string{"a", "b"}})
	profiles := newMemProfiles()
	outbox := newMemOutbox()
	broker := &directBroker{down: true, reactor: NewMessageReactor(rooms, profiles, newMemLedger(), nil, 0)}

	msgRepo := new(MockMessageRepository)
	msgRepo.On("InsertWithEvent", ctx, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { outbox.add(args.Get(2).(domain.OutboxEntry)) }).
		Return(nil)

	uc := NewMessageUseCase(rooms, msgRepo, outbox, broker, nil)
	_, err := uc.Send(ctx, "a", "r1", "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, rooms.unread("r1", "b"))

	broker.down = false
	relay := NewOutboxRelay(outbox, broker, config.ReactorConfig{OutboxGrace: time.Second})
	relay.now = func() time.Time { return time.Now().Add(time.Minute) }

	n, err := relay.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rooms.unread("r1", "b"))
	assert.Equal(t, 1, profiles.snapshot("b").UnreadTotal)

	n, err = relay.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, rooms.unread("r1", "b"))
}

func TestOutboxRelay_StopsAtFirstFailure(t *testing.T) {
	logger.SetNewNop()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	entries := []domain.OutboxEntry{
		{ID: "r1:m1", Event: domain.MessageCreated{RoomID: "r1", MessageID: "m1"}},
		{ID: "r1:m2", Event: domain.MessageCreated{RoomID: "r1", MessageID: "m2"}},
		{ID: "r1:m3", Event: domain.MessageCreated{RoomID: "r1", MessageID: "m3"}},
	}

	outbox := new(MockOutboxRepository)
	outbox.On("Pending", ctx, now.Add(-DefaultOutboxGrace), int64(outboxBatchSize)).Return(entries, nil)
	outbox.On("MarkPublished", ctx, "r1:m1", now).Return(nil)

	events := new(MockEventPublisher)
	events.On("PublishMessageCreated", ctx, entries[0].Event).Return(nil)
	events.On("PublishMessageCreated", ctx, entries[1].Event).Return(errors.New("broker down"))

	relay := NewOutboxRelay(outbox, events, config.ReactorConfig{})
	relay.now = func() time.Time { return now }

	n, err := relay.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	outbox.AssertNumberOfCalls(t, "MarkPublished", 1)
	events.AssertNotCalled(t, "PublishMessageCreated", ctx, entries[2].Event)
}
