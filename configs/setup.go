package configs

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB dials MongoDB and verifies the connection with a ping. Callers
// own the returned client and must Disconnect it on shutdown.
func ConnectDB(cfg Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client, nil
}

// GetCollection returns a handle in the configured database.
func GetCollection(client *mongo.Client, cfg Config, collectionName string) *mongo.Collection {
	return client.Database(cfg.DBName).Collection(collectionName)
}
