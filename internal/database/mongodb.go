// Package database holds the MongoDB connection helpers shared by the
// credential store and the dev backend's session repository.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// ConnectMongo connects and pings within timeout. Callers own client.Disconnect.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo connect: empty uri")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ExpiryIndex is a TTL index that lets the server drop documents once the
// time stored in field has passed.
func ExpiryIndex(field string) mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0).SetName(field + "_ttl"),
	}
}

// EnsureExpiryIndex creates ExpiryIndex(field) on col if it is missing.
func EnsureExpiryIndex(ctx context.Context, col *mongo.Collection, field string) error {
	if _, err := col.Indexes().CreateOne(ctx, ExpiryIndex(field)); err != nil {
		return fmt.Errorf("create %s index on %s: %w", field, col.Name(), err)
	}
	return nil
}
