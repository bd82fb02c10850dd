package app

import (
	"context"
	"time"

	"topli_chat/internal/chat/repository"
	"topli_chat/pkg/config"
	"topli_chat/pkg/logger"

	"go.uber.org/zap"
)

const (
	// DefaultOutboxInterval pause between relay passes
	DefaultOutboxInterval = 5 * time.Second
	// DefaultOutboxGrace entries younger than this are left to Send
	DefaultOutboxGrace = 10 * time.Second
	outboxBatchSize    = 100
)

// OutboxRelay 把 Send 沒送出的 message-created 事件補送到 kafka
type OutboxRelay struct {
	outbox   repository.OutboxRepository
	events   repository.EventPublisher
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
}

// NewOutboxRelay init relay; zero config values fall back to defaults
func NewOutboxRelay(outbox repository.OutboxRepository, events repository.EventPublisher, cfg config.ReactorConfig) *OutboxRelay {
	r := &OutboxRelay{
		outbox:   outbox,
		events:   events,
		interval: cfg.OutboxInterval,
		grace:    cfg.OutboxGrace,
		now:      time.Now,
	}
	if r.interval <= 0 {
		r.interval = DefaultOutboxInterval
	}
	if r.grace <= 0 {
		r.grace = DefaultOutboxGrace
	}
	return r
}

// Run flush pending entries every interval until ctx is cancelled
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Warn("outbox relay pass stopped", zap.Error(err))
			}
		}
	}
}

// Flush publish pending entries oldest first; stops at the first publish error to keep room order
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	entries, err := r.outbox.Pending(ctx, r.now().UTC().Add(-r.grace), outboxBatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, entry := range entries {
		if err := r.events.PublishMessageCreated(ctx, entry.Event); err != nil {
			return published, err
		}
		if err := r.outbox.MarkPublished(ctx, entry.ID, r.now().UTC()); err != nil {
			return published, err
		}
		published++
	}

	if published > 0 {
		logger.Log.Info("outbox relay published", zap.Int("count", published))
	}
	return published, nil
}
