package database

import (
	"context"
	"fmt"
	"time"

	"topli_chat/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaWriterWithRetry 嘗試連線 broker 並確認 topic 存在後建立 Writer
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	if err := waitKafka(k); err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(k.Brokers...),
		Topic:        k.Topic,
		Balancer:     &kafka.Hash{}, // 同一個 room 的事件進同一個 partition
		RequiredAcks: kafka.RequireAll,
	}, nil
}

// NewKafkaReader create a consumer-group reader; offsets are committed explicitly
func NewKafkaReader(k KafkaConnection) (*kafka.Reader, error) {
	if err := waitKafka(k); err != nil {
		return nil, err
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.Brokers,
		Topic:          k.Topic,
		GroupID:        k.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	}), nil
}

func waitKafka(k KafkaConnection) error {
	if err := k.Retry.Do("kafka", func() error { return dialTopic(k) }); err != nil {
		return fmt.Errorf("brokers %v: %w", k.Brokers, err)
	}

	logger.Log.Info("kafka ready", zap.Strings("brokers", k.Brokers), zap.String("topic", k.Topic))
	return nil
}

func dialTopic(k KafkaConnection) error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", k.Brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ReadPartitions(k.Topic)
	return err
}
