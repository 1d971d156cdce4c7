// Package store defines the persistence interfaces used by the services,
// decoupling them from the MongoDB implementations in
// internal/platform/mongodb.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/daracheol/voxscribe/internal/domain"
)

// Common store errors.
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateUser indicates a user with the same sender ID already
	// exists.
	ErrDuplicateUser = errors.New("user already exists")
)

// UserStore manages messenger user records.
type UserStore interface {
	// Create saves a new user. Returns ErrDuplicateUser if the sender ID
	// is already registered.
	Create(ctx context.Context, user *domain.User) error

	// Get retrieves a user by sender ID. Returns ErrUserNotFound if no
	// such user exists.
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetOrCreate retrieves the user, creating a free-plan record on first
	// contact. The second return value reports whether the user was
	// created by this call.
	GetOrCreate(ctx context.Context, id string) (*domain.User, bool, error)

	// Touch updates the user's last-active timestamp.
	Touch(ctx context.Context, id string) error

	// UpdateSubscription sets the user's subscription type and optional
	// end date, and appends a subscription history event.
	UpdateSubscription(ctx context.Context, id string, t domain.SubscriptionType, end *time.Time) error

	// IncrementUsage records one completed transcription: appends a usage
	// record and bumps the user's lifetime counter.
	IncrementUsage(ctx context.Context, id string) error

	// DailyUsage returns the number of transcriptions the user completed
	// during the current UTC day.
	DailyUsage(ctx context.Context, id string) (int64, error)

	// Delete removes the user and all associated records (GDPR erasure).
	Delete(ctx context.Context, id string) error
}

// TranscriptionStore manages persisted transcription results.
type TranscriptionStore interface {
	// Create saves a transcription result.
	Create(ctx context.Context, tr *domain.Transcription) error

	// ListByUser returns the user's transcriptions, newest first, capped
	// at limit.
	ListByUser(ctx context.Context, userID string, limit int64) ([]*domain.Transcription, error)

	// DeleteByUser removes all transcriptions of a user.
	DeleteByUser(ctx context.Context, userID string) error
}

// Stats aggregates operator-facing counters for the admin API.
type Stats struct {
	TotalUsers          int64 `json:"total_users"`
	PremiumUsers        int64 `json:"premium_users"`
	ActiveUsers7d       int64 `json:"active_users_7d"`
	TotalTranscriptions int64 `json:"total_transcriptions"`
}

// StatsStore produces aggregate statistics.
type StatsStore interface {
	// Stats computes the current aggregate counters.
	Stats(ctx context.Context) (*Stats, error)
}

// UserExport bundles everything stored about one user (GDPR export).
type UserExport struct {
	User           *domain.User                `json:"user"`
	Usage          []*domain.UsageRecord       `json:"usage"`
	Subscriptions  []*domain.SubscriptionEvent `json:"subscriptions"`
	Transcriptions []*domain.Transcription     `json:"transcriptions"`
}

// ExportStore assembles per-user data exports.
type ExportStore interface {
	// Export collects all records associated with the user.
	Export(ctx context.Context, userID string) (*UserExport, error)
}
