package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"topli_chat/internal/chat/domain"

	"github.com/segmentio/kafka-go"
)

// EventPublisher emit message-created events to the reactor
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, event domain.MessageCreated) error
}

// KafkaWriter subset of *kafka.Writer used here
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type kafkaEventPublisher struct {
	writer KafkaWriter
}

// NewKafkaEventPublisher create an EventPublisher on a kafka writer
func NewKafkaEventPublisher(w KafkaWriter) EventPublisher {
	return &kafkaEventPublisher{writer: w}
}

func (p *kafkaEventPublisher) PublishMessageCreated(ctx context.Context, event domain.MessageCreated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal message created: %w", err)
	}

	// room id 當 key，同一聊天室的事件依序處理
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RoomID),
		Value: data,
	})
}

// DecodeMessageCreated parse a kafka record value
func DecodeMessageCreated(value []byte) (domain.MessageCreated, error) {
	var event domain.MessageCreated
	if err := json.Unmarshal(value, &event); err != nil {
		return event, fmt.Errorf("decode message created: %w", err)
	}
	return event, nil
}
