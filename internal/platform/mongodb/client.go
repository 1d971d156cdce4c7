// Package mongodb provides the MongoDB-backed implementations of the
// persistence interfaces defined in internal/store.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DatabaseName is the application database on the configured cluster.
const DatabaseName = "transcribe_bot"

// Collection names.
const (
	usersCollection          = "users"
	usageCollection          = "usage"
	subscriptionsCollection  = "subscriptions"
	transcriptionsCollection = "transcriptions"
)

// Connect establishes a client connection, verifies it with a ping, and
// ensures the collection indexes exist. The caller owns the returned client
// and must Disconnect it on shutdown.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	if err := ensureIndexes(ctx, client.Database(DatabaseName)); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}

// ensureIndexes creates the indexes the stores rely on. CreateMany is
// idempotent for identical definitions.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	type indexSet struct {
		collection string
		models     []mongo.IndexModel
	}

	sets := []indexSet{
		{
			collection: usersCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "user_id", Value: 1}},
					Options: options.Index().SetUnique(true),
				},
			},
		},
		{
			collection: usageCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: 1}}},
			},
		},
		{
			collection: subscriptionsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}}},
			},
		},
		{
			collection: transcriptionsCollection,
			models: []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			},
		},
	}

	for _, set := range sets {
		if _, err := db.Collection(set.collection).Indexes().CreateMany(ctx, set.models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", set.collection, err)
		}
	}
	return nil
}
