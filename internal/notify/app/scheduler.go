package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"topli_chat/internal/chat/domain"
	notifydomain "topli_chat/internal/notify/domain"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"go.uber.org/zap"
)

// DefaultTimeZone zone of the daily schedule
const DefaultTimeZone = "Europe/Kiev"

// DigestRunner one digest run
type DigestRunner interface {
	Run(ctx context.Context) (*notifydomain.DigestReport, error)
}

// Scheduler 每日固定時間觸發摘要 (in-process)
type Scheduler struct {
	runner DigestRunner
	hour   int
	minute int
	loc    *time.Location
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
}

// NewScheduler create a daily scheduler at hour:minute in cfg.TimeZone
func NewScheduler(runner DigestRunner, cfg config.DigestConfig) (*Scheduler, error) {
	zone := cfg.TimeZone
	if zone == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %s: %w", zone, err)
	}
	if cfg.Hour < 0 || cfg.Hour > 23 || cfg.Minute < 0 || cfg.Minute > 59 {
		return nil, fmt.Errorf("schedule %02d:%02d: %w", cfg.Hour, cfg.Minute, domain.ErrInvalidArgument)
	}

	return &Scheduler{
		runner: runner,
		hour:   cfg.Hour,
		minute: cfg.Minute,
		loc:    loc,
		now:    time.Now,
		after:  time.After,
	}, nil
}

// NextRun first hour:minute in loc strictly after now
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start block until ctx is done, running the digest once per day
func (s *Scheduler) Start(ctx context.Context) {
	logger.Log.Info("digest scheduler started",
		zap.String("at", fmt.Sprintf("%02d:%02d", s.hour, s.minute)), zap.String("zone", s.loc.String()))

	for {
		next := NextRun(s.now(), s.hour, s.minute, s.loc)
		logger.Log.Debug("next digest run", zap.Time("at", next))

		select {
		case <-ctx.Done():
			logger.Log.Info("digest scheduler stopped")
			return
		case <-s.after(next.Sub(s.now())):
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrAlreadyExecuted):
		logger.Log.Info("scheduled digest skipped, already executed")
	case err != nil:
		logger.Log.Error("scheduled digest failed", zap.Error(err))
	default:
		logger.Log.Info("scheduled digest done", zap.Int("sent", report.Sent), zap.Int("failed", report.Failed))
	}
}
