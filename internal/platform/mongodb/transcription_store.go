package mongodb

import (
	"context"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/platform/logger"
	"github.com/daracheol/voxscribe/internal/store"
)

// TranscriptionStore implements store.TranscriptionStore backed by the
// transcriptions collection.
type TranscriptionStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewTranscriptionStore creates a MongoDB implementation of
// store.TranscriptionStore.
func NewTranscriptionStore(db *mongo.Database, logger *slog.Logger) *TranscriptionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptionStore{
		db:     db,
		logger: logger.With(slog.String("component", "transcription_store")),
	}
}

var _ store.TranscriptionStore = (*TranscriptionStore)(nil)

func (s *TranscriptionStore) collection() *mongo.Collection {
	return s.db.Collection(transcriptionsCollection)
}

// Create implements store.TranscriptionStore.Create.
func (s *TranscriptionStore) Create(ctx context.Context, tr *domain.Transcription) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := tr.Validate(); err != nil {
		return err
	}

	if _, err := s.collection().InsertOne(ctx, tr); err != nil {
		log.Error("failed to save transcription",
			slog.String("error", err.Error()),
			slog.String("user_id", tr.UserID))
		return err
	}
	return nil
}

// ListByUser implements store.TranscriptionStore.ListByUser.
func (s *TranscriptionStore) ListByUser(
	ctx context.Context,
	userID string,
	limit int64,
) ([]*domain.Transcription, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection().Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cursor.Close(ctx) }()

	var results []*domain.Transcription
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteByUser implements store.TranscriptionStore.DeleteByUser.
func (s *TranscriptionStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.collection().DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
