package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"topli_chat/internal/chat/domain"
	memberdomain "topli_chat/internal/member/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/internal/notify/provider"
	"topli_chat/internal/notify/repository"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UserLister users with a digest channel
type UserLister interface {
	ListNotifiable(ctx context.Context) ([]memberdomain.User, error)
}

// ProfileReader private unread aggregate per user
type ProfileReader interface {
	FindByID(ctx context.Context, uid string) (*domain.UnreadProfile, error)
}

// TitleReader room titles by id
type TitleReader interface {
	Titles(ctx context.Context, roomIDs []string) (map[string]string, error)
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

// DigestUseCase 每日未讀摘要：取得鎖後依使用者偏好的管道發送
type DigestUseCase struct {
	locks    repository.LockRepository
	users    UserLister
	profiles ProfileReader
	titles   TitleReader
	sender   provider.Sender

	cooldown        time.Duration
	concurrency     int
	dispatchTimeout time.Duration
	runBudget       time.Duration
	appURL          string
	now             func() time.Time
}

// NewDigestUseCase init digest; zero settings fall back to the defaults
func NewDigestUseCase(
	locks repository.LockRepository,
	users UserLister,
	profiles ProfileReader,
	titles TitleReader,
	sender provider.Sender,
	cfg config.DigestConfig,
) *DigestUseCase {
	d := &DigestUseCase{
		locks:           locks,
		users:           users,
		profiles:        profiles,
		titles:          titles,
		sender:          sender,
		cooldown:        cfg.Cooldown,
		concurrency:     cfg.Concurrency,
		dispatchTimeout: cfg.DispatchTimeout,
		runBudget:       cfg.RunBudget,
		appURL:          cfg.AppURL,
		now:             time.Now,
	}
	if d.cooldown <= 0 {
		d.cooldown = notifydomain.DefaultCooldown
	}
	if d.concurrency <= 0 {
		d.concurrency = notifydomain.DefaultConcurrency
	}
	if d.dispatchTimeout <= 0 {
		d.dispatchTimeout = notifydomain.DefaultDispatchTimeout
	}
	if d.runBudget <= 0 {
		d.runBudget = notifydomain.DefaultRunBudget
	}
	return d
}

// Run acquire the daily lock and send one digest per eligible user.
// Returns ErrAlreadyExecuted when another run happened within the cooldown.
func (d *DigestUseCase) Run(ctx context.Context) (*notifydomain.DigestReport, error) {
	started := d.now()
	if err := d.locks.Acquire(ctx, notifydomain.LockName, started, d.cooldown); err != nil {
		if errors.Is(err, domain.ErrAlreadyExecuted) {
			logger.Log.Info("daily digest already executed", zap.Error(err))
		}
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, d.runBudget)
	defer cancel()

	users, err := d.users.ListNotifiable(runCtx)
	if err != nil {
		return nil, fmt.Errorf("list notifiable users: %w", err)
	}

	report := &notifydomain.DigestReport{
		Candidates: len(users),
		StartedAt:  started,
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.concurrency)

	for _, u := range users {
		u := u
		g.Go(func() error {
			res := d.dispatch(runCtx, u)

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeSent:
				report.Sent++
			case outcomeSkipped:
				report.Skipped++
			default:
				report.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = d.now().Sub(started).String()
	logger.Log.Info("daily digest finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.String("duration", report.Duration),
	)
	return report, nil
}

// dispatch 單一使用者：讀取未讀、檢查聯絡方式、發送
func (d *DigestUseCase) dispatch(ctx context.Context, u memberdomain.User) outcome {
	log := logger.Log.With(zap.String("uid", u.UID), zap.String("channel", string(u.Notification)))

	if err := ctx.Err(); err != nil {
		log.Warn("digest run budget exhausted", zap.Error(err))
		return outcomeFailed
	}

	if u.Notification == memberdomain.NotifyNone || !u.Notification.Valid() {
		return outcomeSkipped
	}

	dctx, cancel := context.WithTimeout(ctx, d.dispatchTimeout)
	defer cancel()

	profile, err := d.profiles.FindByID(dctx, u.UID)
	if errors.Is(err, domain.ErrNotFound) {
		return outcomeSkipped
	}
	if err != nil {
		log.Error("read unread profile failed", zap.Error(err))
		return outcomeFailed
	}

	recipient := notifydomain.Recipient{
		UID:         u.UID,
		Channel:     u.Notification,
		Email:       profile.Email,
		Phone:       profile.Phone,
		UnreadTotal: profile.UnreadTotal,
	}
	if recipient.Phone == "" {
		recipient.Phone = u.Phone
	}
	if recipient.Contact() == "" || recipient.UnreadTotal <= 0 {
		return outcomeSkipped
	}

	recipient.RoomTitles = d.roomTitles(dctx, profile, log)

	if err := d.send(dctx, recipient); err != nil {
		log.Error("digest dispatch failed", zap.Error(err))
		return outcomeFailed
	}

	log.Debug("digest sent", zap.Int("unread_total", recipient.UnreadTotal))
	return outcomeSent
}

func (d *DigestUseCase) roomTitles(ctx context.Context, profile *domain.UnreadProfile, log *logger.LogInfo) []string {
	ids := profile.UnreadRoomIDs()
	sort.Strings(ids)
	if len(ids) == 0 {
		return nil
	}

	titles, err := d.titles.Titles(ctx, ids)
	if err != nil {
		log.Warn("read room titles failed", zap.Error(err))
		titles = nil
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		t := titles[id]
		if t == "" {
			t = notifydomain.UntitledRoom
		}
		out = append(out, t)
	}
	return out
}

func (d *DigestUseCase) send(ctx context.Context, r notifydomain.Recipient) error {
	switch r.Channel {
	case memberdomain.NotifyEmail:
		return d.sender.SendEmail(ctx, notifydomain.BuildEmail(r, d.appURL))
	case memberdomain.NotifyWhatsApp:
		return d.sender.SendWhatsApp(ctx, r.Phone, notifydomain.BuildWhatsApp(r, d.appURL))
	case memberdomain.NotifySMS:
		return d.sender.SendSMS(ctx, r.Phone, notifydomain.BuildSMS(r, d.appURL))
	}
	return fmt.Errorf("channel %q: %w", r.Channel, domain.ErrInvalidArgument)
}
