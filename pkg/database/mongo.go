package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// NewMongoDB create a new MongoDB connection
func NewMongoDB(ctx context.Context, c Connection, dbName string) (*MongoDB, error) {
	clientOpts := options.Client().ApplyURI(c.ConnectStr)

	var client *mongo.Client
	err := c.Retry.Do("mongo", func() error {
		cli, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return err
		}
		// transaction 需要 primary
		if err := cli.Ping(ctx, readpref.Primary()); err != nil {
			_ = cli.Disconnect(ctx)
			return err
		}
		client = cli
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// Close disenable mongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// RunTransaction run fn inside a snapshot transaction with majority commit.
// WithTransaction retries fn on TransientTransactionError (write conflicts),
// so fn must only touch the store through sessCtx and be safe to re-run.
func RunTransaction(ctx context.Context, client *mongo.Client, fn func(sessCtx mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	sess, err := client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return sess.WithTransaction(ctx, fn, txnOpts)
}
