package database

import (
	"fmt"
	"time"

	"topli_chat/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Retry how a connector keeps dialing a store that is still starting up
type Retry struct {
	Attempts int           // <= 0 視為只試一次
	Backoff  time.Duration // 兩次嘗試之間
}

// RetryEvery build a Retry from the yaml pair retry_count / retry_interval (seconds)
func RetryEvery(count, seconds int) Retry {
	return Retry{Attempts: count, Backoff: time.Duration(seconds) * time.Second}
}

// Do call dial until it returns nil or the attempts run out
func (r Retry) Do(store string, dial func() error) error {
	attempts := max(r.Attempts, 1)

	var err error
	for i := 1; i <= attempts; i++ {
		if err = dial(); err == nil {
			return nil
		}
		logger.Log.Warn(store+" not ready",
			zap.Int("attempt", i),
			zap.Int("max", attempts),
			zap.Error(err),
		)
		if i < attempts {
			time.Sleep(r.Backoff)
		}
	}
	return fmt.Errorf("%s not ready after %d attempts: %w", store, attempts, err)
}

// Connection a store reached through one connection string (postgres, mongo)
type Connection struct {
	ConnectStr string
	Retry      Retry
}

// MongoDB client and the database holding rooms, messages and the outbox
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// MinIOConnection attachment and avatar bucket
type MinIOConnection struct {
	Endpoint   string
	PublicURL  string // 空值時由 endpoint 組出
	User       string
	Password   string
	BucketName string
	UseSSL     bool
	Retry      Retry
}

// KafkaConnection message-created stream; GroupID only matters for readers
type KafkaConnection struct {
	Brokers []string
	Topic   string
	GroupID string
	Retry   Retry
}
