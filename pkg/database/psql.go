package database

import (
	"context"
	"fmt"

	"topli_chat/pkg/logger"

	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"
)

// NewDatabaseConnection create a new postgresSQL connection
func NewDatabaseConnection(d Connection) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(d.ConnectStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	var pool *pgxpool.Pool
	err = d.Retry.Do("postgres", func() error {
		var err error
		pool, err = pgxpool.ConnectConfig(context.Background(), dbConfig)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("postgres connected",
		zap.String("address", fmt.Sprintf("[%s@%s]", dbConfig.ConnConfig.User, dbConfig.ConnConfig.Host)),
	)
	return pool, nil
}
