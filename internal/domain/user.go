package domain

import (
	"time"
)

// SubscriptionType identifies a user's plan.
type SubscriptionType string

// Known subscription types.
const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionPremium SubscriptionType = "premium"
)

// Freemium limits.
const (
	// FreeDailyLimit is the number of transcriptions a free user may run
	// per UTC day.
	FreeDailyLimit = 10

	// MaxAudioDurationFree caps media length for free users.
	MaxAudioDurationFree = 300 * time.Second

	// MaxAudioDurationPremium caps media length for premium users.
	MaxAudioDurationPremium = 3600 * time.Second

	// MaxMediaFileSize caps the size of a downloaded attachment.
	MaxMediaFileSize = 100 * 1024 * 1024
)

// User represents a messenger user identified by the page-scoped sender ID
// delivered in webhook events. It tracks subscription state, language
// preferences, and lifetime usage.
type User struct {
	// ID is the page-scoped sender ID (PSID) from the messaging platform.
	ID string `json:"user_id" bson:"user_id"`

	Subscription    SubscriptionType `json:"subscription_type" bson:"subscription_type"`
	SubscriptionEnd *time.Time       `json:"subscription_end,omitempty" bson:"subscription_end,omitempty"`

	// PreferredLanguage forces the transcription language when set;
	// empty means auto-detect.
	PreferredLanguage string `json:"preferred_language,omitempty" bson:"preferred_language,omitempty"`
	// TargetLanguage is the translation target when AutoTranslate is on.
	TargetLanguage string `json:"target_language,omitempty" bson:"target_language,omitempty"`
	AutoTranslate  bool   `json:"auto_translate" bson:"auto_translate"`

	TotalTranscriptions int64     `json:"total_transcriptions" bson:"total_transcriptions"`
	CreatedAt           time.Time `json:"created_at" bson:"created_at"`
	LastActiveAt        time.Time `json:"last_active" bson:"last_active"`
}

// NewUser creates a free-plan user for the given sender ID.
func NewUser(id string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:           id,
		Subscription: SubscriptionFree,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}
	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == "" {
		return ErrEmptyUserID
	}
	if !isValidSubscriptionType(u.Subscription) {
		return ErrInvalidSubscription
	}
	return nil
}

// EffectiveSubscription returns the user's plan at the given time,
// accounting for expiry. A premium user whose SubscriptionEnd has passed is
// treated as free.
func (u *User) EffectiveSubscription(now time.Time) SubscriptionType {
	if u.Subscription == SubscriptionPremium && u.SubscriptionEnd != nil &&
		now.After(*u.SubscriptionEnd) {
		return SubscriptionFree
	}
	return u.Subscription
}

// IsPremium reports whether the user has an active premium subscription.
func (u *User) IsPremium(now time.Time) bool {
	return u.EffectiveSubscription(now) == SubscriptionPremium
}

// MaxAudioDuration returns the media duration cap for the user's effective
// plan at the given time.
func (u *User) MaxAudioDuration(now time.Time) time.Duration {
	if u.IsPremium(now) {
		return MaxAudioDurationPremium
	}
	return MaxAudioDurationFree
}

func isValidSubscriptionType(t SubscriptionType) bool {
	switch t {
	case SubscriptionFree, SubscriptionPremium:
		return true
	default:
		return false
	}
}
