package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transcription is a persisted transcription result, kept so premium users
// can access their history.
type Transcription struct {
	ID     uuid.UUID `json:"id" bson:"_id"`
	UserID string    `json:"user_id" bson:"user_id"`

	Text     string `json:"text" bson:"text"`
	Language string `json:"language" bson:"language"`

	// Translation is set when the user has auto-translate enabled and the
	// detected language differs from the target.
	Translation    string `json:"translation,omitempty" bson:"translation,omitempty"`
	TargetLanguage string `json:"target_language,omitempty" bson:"target_language,omitempty"`

	DurationSeconds float64 `json:"duration_seconds" bson:"duration_seconds"`

	// ObjectKey references the archived source media in object storage;
	// empty when archival is disabled.
	ObjectKey string `json:"object_key,omitempty" bson:"object_key,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NewTranscription creates a validated transcription record.
func NewTranscription(userID, text, language string) (*Transcription, error) {
	tr := &Transcription{
		ID:        uuid.New(),
		UserID:    userID,
		Text:      text,
		Language:  language,
		CreatedAt: time.Now().UTC(),
	}

	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return tr, nil
}

// Validate checks if the Transcription has valid data.
func (t *Transcription) Validate() error {
	if t.UserID == "" {
		return ErrEmptyUserID
	}
	if t.Text == "" {
		return ErrEmptyTranscriptionText
	}
	return nil
}
