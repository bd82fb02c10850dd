package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"topli_chat/internal/chat/domain"
	"topli_chat/pkg/logger"

	"github.com/cucumber/godog"
)

type unreadWorld struct {
	rooms    *memRooms
	profiles *memProfiles
	reactor  *MessageReactor
	reads    *ReadStateUseCase
}

func (w *unreadWorld) reset() {
	w.rooms = newMemRooms()
	w.profiles = newMemProfiles()
	w.reactor = NewMessageReactor(w.rooms, w.profiles, newMemLedger(), nil, 0)
	w.reads = NewReadStateUseCase(w.profiles, w.rooms)
}

func (w *unreadWorld) aRoomWithParticipants(roomID, list string) error {
	var participants []string
	for _, p := range strings.Split(list, ",") {
		participants = append(participants, strings.TrimSpace(p))
	}
	w.rooms.mu.Lock()
	w.rooms.rooms[roomID] = &domain.Room{ID: roomID, Participants: participants, UnreadCount: map[string]int{}}
	w.rooms.mu.Unlock()
	return nil
}

func (w *unreadWorld) profileUpdatesFail(uid string) error {
	w.profiles.failFor[uid] = true
	return nil
}

func (w *unreadWorld) postsMessage(author, msgID, roomID string) error {
	return w.reactor.Handle(context.Background(), newEvent(roomID, msgID, author, "hello "+msgID))
}

func (w *unreadWorld) deliveredAgain(msgID, author, roomID string) error {
	return w.postsMessage(author, msgID, roomID)
}

func (w *unreadWorld) readsRoom(uid, roomID string) error {
	_, err := w.reads.MarkAsRead(context.Background(), uid, roomID)
	return err
}

func (w *unreadWorld) shouldHaveUnread(uid string, inRoom int, roomID string, total int) error {
	p := w.profiles.snapshot(uid)
	if p.UnreadRooms[roomID] != inRoom || p.UnreadTotal != total {
		return fmt.Errorf("%s: expected %d in %s and %d total, got %d and %d",
			uid, inRoom, roomID, total, p.UnreadRooms[roomID], p.UnreadTotal)
	}
	if !p.Consistent() {
		return fmt.Errorf("%s: unread_total %d does not match rooms %v", uid, p.UnreadTotal, p.UnreadRooms)
	}
	return nil
}

func (w *unreadWorld) roomCounterShouldBe(roomID, uid string, n int) error {
	if got := w.rooms.unread(roomID, uid); got != n {
		return fmt.Errorf("room %s counter for %s: expected %d, got %d", roomID, uid, n, got)
	}
	return nil
}

func InitializeUnreadScenario(sc *godog.ScenarioContext) {
	w := &unreadWorld{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		logger.SetNewNop()
		w.reset()
		return ctx, nil
	})

	sc.Step(`^a room "([^"]*)" with participants "([^"]*)"$`, w.aRoomWithParticipants)
	sc.Step(`^profile updates for "([^"]*)" fail$`, w.profileUpdatesFail)
	sc.Step(`^"([^"]*)" posts message "([^"]*)" in "([^"]*)"$`, w.postsMessage)
	sc.Step(`^message "([^"]*)" by "([^"]*)" in "([^"]*)" is delivered again$`, w.deliveredAgain)
	sc.Step(`^"([^"]*)" reads room "([^"]*)"$`, w.readsRoom)
	sc.Step(`^"([^"]*)" should have (\d+) unread in "([^"]*)" and (\d+) in total$`, w.shouldHaveUnread)
	sc.Step(`^the room "([^"]*)" counter for "([^"]*)" should be (\d+)$`, w.roomCounterShouldBe)
}

func TestUnreadFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "unread_counters",
		ScenarioInitializer: InitializeUnreadScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/unread_counters.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
