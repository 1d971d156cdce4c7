package domain

import (
	"time"

	"github.com/google/uuid"
)

// BillingPlan identifies a purchasable subscription term.
type BillingPlan string

// Available billing plans.
const (
	PlanMonthly BillingPlan = "monthly"
	PlanYearly  BillingPlan = "yearly"
)

// Price returns the plan price in USD.
func (p BillingPlan) Price() string {
	if p == PlanYearly {
		return "49.99"
	}
	return "4.99"
}

// Term returns how long one billing cycle of the plan lasts.
func (p BillingPlan) Term() time.Duration {
	if p == PlanYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// SubscriptionEvent records a change of a user's subscription, forming the
// plan history kept alongside the mutable state on the User record.
type SubscriptionEvent struct {
	ID        uuid.UUID        `json:"id" bson:"_id"`
	UserID    string           `json:"user_id" bson:"user_id"`
	Type      SubscriptionType `json:"type" bson:"type"`
	StartedAt time.Time        `json:"started_at" bson:"started_at"`
	EndsAt    *time.Time       `json:"end_date,omitempty" bson:"end_date,omitempty"`
}

// NewSubscriptionEvent creates a subscription change record.
func NewSubscriptionEvent(userID string, t SubscriptionType, endsAt *time.Time) (*SubscriptionEvent, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	if !isValidSubscriptionType(t) {
		return nil, ErrInvalidSubscription
	}
	return &SubscriptionEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      t,
		StartedAt: time.Now().UTC(),
		EndsAt:    endsAt,
	}, nil
}

// UsageRecord marks one completed transcription; daily counts of these
// records drive the freemium limit.
type UsageRecord struct {
	UserID    string    `json:"user_id" bson:"user_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
