package testtool

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// StartMongoReplicaSet 啟動單節點 replica set，交易需要 replica set
func StartMongoReplicaSet(ctx context.Context) (*Service, string, error) {
	svc, err := StartService(ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return nil, "", err
	}

	code, _, err := svc.Container.Exec(ctx, []string{
		"mongosh", "--quiet", "--eval",
		"rs.initiate({_id: 'rs0', members: [{_id: 0, host: 'localhost:27017'}]})",
	})
	if err != nil || code != 0 {
		_ = svc.Terminate(ctx)
		return nil, "", fmt.Errorf("rs.initiate exit %d: %v", code, err)
	}

	uri := fmt.Sprintf("mongodb://%s/?directConnection=true", svc.Addr())
	if err := waitPrimary(ctx, uri); err != nil {
		_ = svc.Terminate(ctx)
		return nil, "", err
	}
	return svc, uri, nil
}

func waitPrimary(ctx context.Context, uri string) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		var res struct {
			IsWritablePrimary bool `bson:"isWritablePrimary"`
		}
		err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&res)
		if err == nil && res.IsWritablePrimary {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("mongo replica set %s never became primary", uri)
}
