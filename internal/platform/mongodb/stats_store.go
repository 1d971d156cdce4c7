package mongodb

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/store"
)

// StatsStore implements store.StatsStore and store.ExportStore, reading
// across all collections.
type StatsStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewStatsStore creates a MongoDB implementation of the aggregate stores.
func NewStatsStore(db *mongo.Database, logger *slog.Logger) *StatsStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsStore{
		db:     db,
		logger: logger.With(slog.String("component", "stats_store")),
	}
}

var (
	_ store.StatsStore  = (*StatsStore)(nil)
	_ store.ExportStore = (*StatsStore)(nil)
)

// Stats implements store.StatsStore.Stats.
func (s *StatsStore) Stats(ctx context.Context) (*store.Stats, error) {
	users := s.db.Collection(usersCollection)

	total, err := users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	premium, err := users.CountDocuments(ctx, bson.M{"subscription_type": domain.SubscriptionPremium})
	if err != nil {
		return nil, err
	}

	weekAgo := time.Now().UTC().Add(-7 * 24 * time.Hour)
	active, err := users.CountDocuments(ctx, bson.M{"last_active": bson.M{"$gte": weekAgo}})
	if err != nil {
		return nil, err
	}

	// Sum of the per-user lifetime counters.
	cursor, err := users.Aggregate(ctx, mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$total_transcriptions"}}},
		}}},
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var agg []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &agg); err != nil {
		return nil, err
	}

	stats := &store.Stats{
		TotalUsers:    total,
		PremiumUsers:  premium,
		ActiveUsers7d: active,
	}
	if len(agg) > 0 {
		stats.TotalTranscriptions = agg[0].Total
	}
	return stats, nil
}

// Export implements store.ExportStore.Export.
func (s *StatsStore) Export(ctx context.Context, userID string) (*store.UserExport, error) {
	userStore := NewUserStore(s.db, s.logger)
	user, err := userStore.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	export := &store.UserExport{User: user}

	cursor, err := s.db.Collection(usageCollection).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &export.Usage); err != nil {
		return nil, err
	}

	cursor, err = s.db.Collection(subscriptionsCollection).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &export.Subscriptions); err != nil {
		return nil, err
	}

	cursor, err = s.db.Collection(transcriptionsCollection).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &export.Transcriptions); err != nil {
		return nil, err
	}

	return export, nil
}
