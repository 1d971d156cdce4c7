package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/daracheol/voxscribe/internal/domain"
	"github.com/daracheol/voxscribe/internal/platform/logger"
	"github.com/daracheol/voxscribe/internal/store"
)

// UserStore implements store.UserStore backed by the users, usage, and
// subscriptions collections.
type UserStore struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewUserStore creates a MongoDB implementation of store.UserStore.
// If logger is nil, the default logger is used.
func NewUserStore(db *mongo.Database, logger *slog.Logger) *UserStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserStore{
		db:     db,
		logger: logger.With(slog.String("component", "user_store")),
	}
}

var _ store.UserStore = (*UserStore)(nil)

func (s *UserStore) users() *mongo.Collection         { return s.db.Collection(usersCollection) }
func (s *UserStore) usage() *mongo.Collection         { return s.db.Collection(usageCollection) }
func (s *UserStore) subscriptions() *mongo.Collection { return s.db.Collection(subscriptionsCollection) }

// Create implements store.UserStore.Create.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := user.Validate(); err != nil {
		return err
	}

	if _, err := s.users().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateUser, user.ID)
		}
		log.Error("failed to create user",
			slog.String("error", err.Error()),
			slog.String("user_id", user.ID))
		return err
	}

	log.Info("user created", slog.String("user_id", user.ID))
	return nil
}

// Get implements store.UserStore.Get.
func (s *UserStore) Get(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.users().FindOne(ctx, bson.M{"user_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetOrCreate implements store.UserStore.GetOrCreate. Concurrent first
// contacts race on the unique user_id index; the loser re-reads.
func (s *UserStore) GetOrCreate(ctx context.Context, id string) (*domain.User, bool, error) {
	user, err := s.Get(ctx, id)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, false, err
	}

	user, err = domain.NewUser(id)
	if err != nil {
		return nil, false, err
	}

	if err := s.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateUser) {
			existing, getErr := s.Get(ctx, id)
			return existing, false, getErr
		}
		return nil, false, err
	}
	return user, true, nil
}

// Touch implements store.UserStore.Touch.
func (s *UserStore) Touch(ctx context.Context, id string) error {
	_, err := s.users().UpdateOne(ctx,
		bson.M{"user_id": id},
		bson.M{"$set": bson.M{"last_active": time.Now().UTC()}})
	return err
}

// UpdateSubscription implements store.UserStore.UpdateSubscription.
// The history event is written after the user update; a failure in between
// leaves the user state correct and only the history incomplete.
func (s *UserStore) UpdateSubscription(
	ctx context.Context,
	id string,
	t domain.SubscriptionType,
	end *time.Time,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	set := bson.M{
		"subscription_type":    t,
		"subscription_updated": time.Now().UTC(),
	}
	if end != nil {
		set["subscription_end"] = *end
	} else {
		// Downgrades clear the end date.
		set["subscription_end"] = nil
	}

	res, err := s.users().UpdateOne(ctx, bson.M{"user_id": id}, bson.M{"$set": set})
	if err != nil {
		log.Error("failed to update subscription",
			slog.String("error", err.Error()),
			slog.String("user_id", id))
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrUserNotFound
	}

	event, err := domain.NewSubscriptionEvent(id, t, end)
	if err != nil {
		return err
	}
	if _, err := s.subscriptions().InsertOne(ctx, event); err != nil {
		log.Error("failed to record subscription event",
			slog.String("error", err.Error()),
			slog.String("user_id", id))
		return err
	}

	log.Info("subscription updated",
		slog.String("user_id", id),
		slog.String("type", string(t)))
	return nil
}

// IncrementUsage implements store.UserStore.IncrementUsage.
func (s *UserStore) IncrementUsage(ctx context.Context, id string) error {
	now := time.Now().UTC()

	if _, err := s.usage().InsertOne(ctx, domain.UsageRecord{UserID: id, Timestamp: now}); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	_, err := s.users().UpdateOne(ctx,
		bson.M{"user_id": id},
		bson.M{
			"$inc": bson.M{"total_transcriptions": 1},
			"$set": bson.M{"last_active": now},
		})
	return err
}

// DailyUsage implements store.UserStore.DailyUsage. Days are UTC-bounded.
func (s *UserStore) DailyUsage(ctx context.Context, id string) (int64, error) {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return s.usage().CountDocuments(ctx, bson.M{
		"user_id": id,
		"timestamp": bson.M{
			"$gte": dayStart,
			"$lt":  dayStart.Add(24 * time.Hour),
		},
	})
}

// Delete implements store.UserStore.Delete, removing the user together with
// usage and subscription history.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	res, err := s.users().DeleteOne(ctx, bson.M{"user_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrUserNotFound
	}

	if _, err := s.usage().DeleteMany(ctx, bson.M{"user_id": id}); err != nil {
		return err
	}
	if _, err := s.subscriptions().DeleteMany(ctx, bson.M{"user_id": id}); err != nil {
		return err
	}

	log.Info("user data deleted", slog.String("user_id", id))
	return nil
}
