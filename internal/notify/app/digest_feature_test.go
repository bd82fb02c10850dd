package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"topli_chat/internal/chat/domain"
	memberdomain "topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/logger"

	"github.com/cucumber/godog"
)

type digestWorld struct {
	now      time.Time
	locks    *memLocks
	users    staticUsers
	profiles memProfiles
	sender   *recordingSender

	mu      sync.Mutex
	results []error
	report  *notifydomain.DigestReport
}

func (w *digestWorld) reset() {
	w.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	w.locks = newMemLocks()
	w.users = staticUsers{}
	w.profiles = memProfiles{}
	w.sender = &recordingSender{failFor: map[string]bool{}}
	w.results = nil
	w.report = nil
}

func (w *digestWorld) useCase() *DigestUseCase {
	d := NewDigestUseCase(w.locks, w.users, w.profiles, staticTitles{}, w.sender, digestCfg)
	d.now = func() time.Time { return w.now }
	return d
}

func (w *digestWorld) aUserPrefersWithContact(uid, channel, contact string, unread int) error {
	ch := memberdomain.NotificationChannel(channel)
	if !ch.Valid() {
		return fmt.Errorf("unknown channel %q", channel)
	}
	w.users = append(w.users, memberdomain.User{UID: uid, Notification: ch})

	p := &domain.UnreadProfile{UID: uid, UnreadTotal: unread, UnreadRooms: map[string]int{"room-" + uid: unread}}
	if ch == memberdomain.NotifyEmail {
		p.Email = contact
	} else {
		p.Phone = contact
	}
	w.profiles[uid] = p
	return nil
}

func (w *digestWorld) deliveryFails(contact string) error {
	w.sender.failFor[contact] = true
	return nil
}

func (w *digestWorld) lastRanHoursAgo(hours int) error {
	w.locks.locks[notifydomain.LockName] = &notifydomain.DigestLock{
		ID:      notifydomain.LockName,
		LastRun: w.now.Add(-time.Duration(hours) * time.Hour),
	}
	return nil
}

func (w *digestWorld) runsStartAtTheSameTime(n int) error {
	d := w.useCase()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := d.Run(context.Background())

			w.mu.Lock()
			defer w.mu.Unlock()
			w.results = append(w.results, err)
			if err == nil {
				w.report = report
			}
		}()
	}
	wg.Wait()
	return nil
}

func (w *digestWorld) aRunStarts() error {
	return w.runsStartAtTheSameTime(1)
}

func (w *digestWorld) exactlyRunsSucceed(n int) error {
	ok := 0
	for _, err := range w.results {
		if err == nil {
			ok++
		}
	}
	if ok != n {
		return fmt.Errorf("expected %d successful runs, got %d (%v)", n, ok, w.results)
	}
	return nil
}

func (w *digestWorld) runsRejected(n int) error {
	rejected := 0
	for _, err := range w.results {
		if errors.Is(err, domain.ErrAlreadyExecuted) {
			rejected++
		}
	}
	if rejected != n {
		return fmt.Errorf("expected %d rejected runs, got %d", n, rejected)
	}
	return nil
}

func (w *digestWorld) notificationsDelivered(n int) error {
	w.sender.mu.Lock()
	defer w.sender.mu.Unlock()
	got := len(w.sender.emails) + len(w.sender.sms) + len(w.sender.whatsapp)
	if got != n {
		return fmt.Errorf("expected %d deliveries, got %d", n, got)
	}
	return nil
}

func (w *digestWorld) reportShows(candidates, sent, skipped, failed int) error {
	if w.report == nil {
		return errors.New("no report")
	}
	want := notifydomain.DigestReport{Candidates: candidates, Sent: sent, Skipped: skipped, Failed: failed}
	got := notifydomain.DigestReport{Candidates: w.report.Candidates, Sent: w.report.Sent, Skipped: w.report.Skipped, Failed: w.report.Failed}
	if got != want {
		return fmt.Errorf("expected report %+v, got %+v", want, got)
	}
	return nil
}

func InitializeDigestScenario(sc *godog.ScenarioContext) {
	w := &digestWorld{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		logger.SetNewNop()
		w.reset()
		return ctx, nil
	})

	sc.Step(`^a user "([^"]*)" prefers "([^"]*)" with contact "([^"]*)" and (\d+) unread messages$`, w.aUserPrefersWithContact)
	sc.Step(`^delivery to "([^"]*)" fails$`, w.deliveryFails)
	sc.Step(`^the digest last ran (\d+) hours ago$`, w.lastRanHoursAgo)
	sc.Step(`^(\d+) digest runs start at the same time$`, w.runsStartAtTheSameTime)
	sc.Step(`^a digest run starts$`, w.aRunStarts)
	sc.Step(`^exactly (\d+) runs? should succeed$`, w.exactlyRunsSucceed)
	sc.Step(`^(\d+) runs should be rejected as already executed$`, w.runsRejected)
	sc.Step(`^(\d+) notifications? should be delivered$`, w.notificationsDelivered)
	sc.Step(`^the report should show (\d+) candidates, (\d+) sent, (\d+) skipped and (\d+) failed$`, w.reportShows)
}

func TestDigestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "daily_digest",
		ScenarioInitializer: InitializeDigestScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/daily_digest.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
