package app

import (
	"context"
	"errors"
	"time"

	"topli_chat/internal/chat/domain"
	"topli_chat/internal/chat/repository"
	"topli_chat/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxRetryBackoff = 30 * time.Second

// KafkaReader subset of *kafka.Reader
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ReactorConsumer 從 kafka 讀取 message-created 事件交給 MessageReactor
type ReactorConsumer struct {
	reader  KafkaReader
	reactor *MessageReactor
	backoff time.Duration
}

// NewReactorConsumer init consumer
func NewReactorConsumer(reader KafkaReader, reactor *MessageReactor) *ReactorConsumer {
	return &ReactorConsumer{
		reader:  reader,
		reactor: reactor,
		backoff: time.Second,
	}
}

// Run consume until ctx is cancelled. Offsets are committed only after an event is handled.
func (c *ReactorConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Log.Error("kafka fetch failed", zap.Error(err))
			return err
		}

		if err := c.handle(ctx, msg); err != nil {
			// ctx 結束，不 commit，重啟後重新投遞
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Log.Error("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle retry transient failures until success or ctx ends
func (c *ReactorConsumer) handle(ctx context.Context, msg kafka.Message) error {
	event, err := repository.DecodeMessageCreated(msg.Value)
	if err != nil {
		logger.Log.Error("drop malformed event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}

	wait := c.backoff
	for {
		err := c.reactor.Handle(ctx, event)
		if err == nil || errors.Is(err, domain.ErrInvalidArgument) {
			return nil
		}

		logger.Log.Warn("reactor failed, retrying", zap.String("key", event.Key()), zap.Duration("wait", wait), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > maxRetryBackoff {
			wait = maxRetryBackoff
		}
	}
}
