package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"topli_chat/internal/chat/domain"
	"topli_chat/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// UserChannel redis channel for one member
func UserChannel(uid string) string {
	return "chat:user:" + uid
}

// Publisher publish a JSON payload on a channel
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{
		client: client,
	}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe 訂閱自己member ID，收到未讀通知後呼叫 handler 處理
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error {
	sub := r.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var notice domain.UnreadNotice
				if err := json.Unmarshal([]byte(m.Payload), &notice); err != nil {
					logger.Log.Error("unread notice unmarshal", zap.String("channel", channel), zap.Error(err))
					continue
				}

				handler(domain.WSResponse{
					Action:  string(domain.NotifyUnread),
					Success: true,
					Payload: map[string]interface{}{
						"room_id":    notice.RoomID,
						"message_id": notice.MessageID,
						"preview":    notice.Preview,
					},
				})
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", channel))
				return
			}
		}
	}()
	return nil
}
