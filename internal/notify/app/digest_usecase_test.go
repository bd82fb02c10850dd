package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"topli_chat/internal/chat/domain"
	memberdomain "topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memLocks check-and-set under a mutex, same contract as the mongo transaction
type memLocks struct {
	mu    sync.Mutex
	locks map[string]*notifydomain.DigestLock
}

func newMemLocks() *memLocks {
	return &memLocks{locks: map[string]*notifydomain.DigestLock{}}
}

func (m *memLocks) Acquire(ctx context.Context, name string, now time.Time, cooldown time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.locks[name].Acquirable(now, cooldown) {
		return fmt.Errorf("lock %s: %w", name, domain.ErrAlreadyExecuted)
	}
	m.locks[name] = &notifydomain.DigestLock{ID: name, LastRun: now}
	return nil
}

func (m *memLocks) Get(ctx context.Context, name string) (*notifydomain.DigestLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[name]; ok {
		return l, nil
	}
	return nil, domain.ErrNotFound
}

type memProfiles map[string]*domain.UnreadProfile

func (m memProfiles) FindByID(ctx context.Context, uid string) (*domain.UnreadProfile, error) {
	if p, ok := m[uid]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

type staticUsers []memberdomain.User

func (s staticUsers) ListNotifiable(ctx context.Context) ([]memberdomain.User, error) {
	return s, nil
}

type staticTitles map[string]string

func (s staticTitles) Titles(ctx context.Context, ids []string) (map[string]string, error) {
	return s, nil
}

// recordingSender counts deliveries; failFor contacts return an error
type recordingSender struct {
	mu          sync.Mutex
	emails      []notifydomain.EmailMessage
	sms         []string
	whatsapp    []string
	failFor     map[string]bool
	delay       time.Duration
	inFlight    int32
	maxInFlight int32
}

func (r *recordingSender) enter(contact string) error {
	n := atomic.AddInt32(&r.inFlight, 1)
	defer atomic.AddInt32(&r.inFlight, -1)
	for {
		max := atomic.LoadInt32(&r.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&r.maxInFlight, max, n) {
			break
		}
	}
	time.Sleep(r.delay)
	if r.failFor[contact] {
		return errors.New("provider down")
	}
	return nil
}

func (r *recordingSender) SendEmail(ctx context.Context, msg notifydomain.EmailMessage) error {
	if err := r.enter(msg.To); err != nil {
		return err
	}
	r.mu.Lock()
	r.emails = append(r.emails, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) SendSMS(ctx context.Context, phone, text string) error {
	if err := r.enter(phone); err != nil {
		return err
	}
	r.mu.Lock()
	r.sms = append(r.sms, phone)
	r.mu.Unlock()
	return nil
}

func (r *recordingSender) SendWhatsApp(ctx context.Context, phone, text string) error {
	if err := r.enter(phone); err != nil {
		return err
	}
	r.mu.Lock()
	r.whatsapp = append(r.whatsapp, phone)
	r.mu.Unlock()
	return nil
}

var digestCfg = config.DigestConfig{AppURL: "https://topli.chat"}

func TestDigest_DispatchByChannelAndSkips(t *testing.T) {
	logger.SetNewNop()

	users := staticUsers{
		{UID: "u-email", Notification: memberdomain.NotifyEmail},
		{UID: "u-sms", Notification: memberdomain.NotifySMS},
		{UID: "u-wa", Notification: memberdomain.NotifyWhatsApp, Phone: "+905550000003"},
		{UID: "u-zero", Notification: memberdomain.NotifyEmail},
		{UID: "u-nomail", Notification: memberdomain.NotifyEmail},
		{UID: "u-noprofile", Notification: memberdomain.NotifySMS},
	}
	profiles := memProfiles{
		"u-email":  {UID: "u-email", Email: "e@topli.chat", UnreadTotal: 3, UnreadRooms: map[string]int{"r1": 2, "r2": 1}},
		"u-sms":    {UID: "u-sms", Phone: "+905550000002", UnreadTotal: 1, UnreadRooms: map[string]int{"r1": 1}},
		"u-wa":     {UID: "u-wa", UnreadTotal: 4, UnreadRooms: map[string]int{"r2": 4}},
		"u-zero":   {UID: "u-zero", Email: "z@topli.chat"},
		"u-nomail": {UID: "u-nomail", UnreadTotal: 2, UnreadRooms: map[string]int{"r1": 2}},
	}
	sender := &recordingSender{}

	d := NewDigestUseCase(newMemLocks(), users, profiles, staticTitles{"r1": "Sales"}, sender, digestCfg)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, report.Candidates)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 0, report.Failed)

	require.Len(t, sender.emails, 1)
	assert.Equal(t, "e@topli.chat", sender.emails[0].To)
	assert.Contains(t, sender.emails[0].HTML, "Chats: Sales, Untitled</p>")
	assert.Equal(t, []string{"+905550000002"}, sender.sms)
	// phone falls back to the public record
	assert.Equal(t, []string{"+905550000003"}, sender.whatsapp)
}

func TestDigest_LockRejected(t *testing.T) {
	logger.SetNewNop()

	locks := new(MockLockRepository)
	users := new(MockUserLister)
	locks.On("Acquire", mock.Anything, notifydomain.LockName, mock.Anything, notifydomain.DefaultCooldown).
		Return(fmt.Errorf("lock: %w", domain.ErrAlreadyExecuted))

	d := NewDigestUseCase(locks, users, memProfiles{}, staticTitles{}, &recordingSender{}, digestCfg)
	report, err := d.Run(context.Background())

	assert.Nil(t, report)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExecuted))
	users.AssertNotCalled(t, "ListNotifiable", mock.Anything)
}

func TestDigest_LockExclusiveUnderConcurrency(t *testing.T) {
	logger.SetNewNop()

	locks := newMemLocks()
	users := staticUsers{{UID: "u1", Notification: memberdomain.NotifySMS}}
	profiles := memProfiles{"u1": {UID: "u1", Phone: "+905550000001", UnreadTotal: 1, UnreadRooms: map[string]int{"r": 1}}}
	sender := &recordingSender{}
	d := NewDigestUseCase(locks, users, profiles, staticTitles{}, sender, digestCfg)

	var (
		wg       sync.WaitGroup
		ok       int32
		rejected int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Run(context.Background())
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrAlreadyExecuted):
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(9), rejected)
	assert.Len(t, sender.sms, 1)
}

func TestDigest_LockReopensAfterCooldown(t *testing.T) {
	logger.SetNewNop()

	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	d := NewDigestUseCase(newMemLocks(), staticUsers{}, memProfiles{}, staticTitles{}, &recordingSender{}, digestCfg)
	d.now = func() time.Time { return clock }

	_, err := d.Run(context.Background())
	require.NoError(t, err)

	clock = clock.Add(22*time.Hour + 59*time.Minute)
	_, err = d.Run(context.Background())
	assert.True(t, errors.Is(err, domain.ErrAlreadyExecuted))

	clock = clock.Add(time.Minute)
	_, err = d.Run(context.Background())
	assert.NoError(t, err)
}

func TestDigest_PartialFailuresDoNotAbort(t *testing.T) {
	logger.SetNewNop()

	users := staticUsers{}
	profiles := memProfiles{}
	for i := 0; i < 30; i++ {
		uid := fmt.Sprintf("u%02d", i)
		users = append(users, memberdomain.User{UID: uid, Notification: memberdomain.NotifySMS})
		profiles[uid] = &domain.UnreadProfile{UID: uid, Phone: "+9055500000" + fmt.Sprintf("%02d", i), UnreadTotal: 1, UnreadRooms: map[string]int{"r": 1}}
	}
	sender := &recordingSender{
		delay:   5 * time.Millisecond,
		failFor: map[string]bool{"+905550000003": true, "+905550000017": true},
	}

	d := NewDigestUseCase(newMemLocks(), users, profiles, staticTitles{}, sender, digestCfg)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 30, report.Candidates)
	assert.Equal(t, 28, report.Sent)
	assert.Equal(t, 2, report.Failed)
	assert.LessOrEqual(t, atomic.LoadInt32(&sender.maxInFlight), int32(notifydomain.DefaultConcurrency))
}

func TestDigest_ProfileErrorCountsAsFailure(t *testing.T) {
	logger.SetNewNop()

	profiles := new(MockProfileReader)
	profiles.On("FindByID", mock.Anything, "u1").Return(nil, errors.New("mongo down"))

	d := NewDigestUseCase(newMemLocks(), staticUsers{{UID: "u1", Notification: memberdomain.NotifyEmail}},
		profiles, staticTitles{}, &recordingSender{}, digestCfg)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	profiles.AssertExpectations(t)
}

func TestDigest_DispatchTimeout(t *testing.T) {
	logger.SetNewNop()

	sender := new(MockSender)
	sender.On("SendSMS", mock.Anything, "+905550000001", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	cfg := digestCfg
	cfg.DispatchTimeout = 20 * time.Millisecond
	d := NewDigestUseCase(newMemLocks(),
		staticUsers{{UID: "u1", Notification: memberdomain.NotifySMS}},
		memProfiles{"u1": {UID: "u1", Phone: "+905550000001", UnreadTotal: 2, UnreadRooms: map[string]int{"r": 2}}},
		staticTitles{}, sender, cfg)

	start := time.Now()
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Less(t, time.Since(start), time.Second)
}
