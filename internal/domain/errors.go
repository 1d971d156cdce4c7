package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyUserID is returned when a messenger sender ID is empty.
	ErrEmptyUserID = errors.New("user ID cannot be empty")

	// ErrInvalidSubscription is returned when a subscription type is not
	// one of the known plans.
	ErrInvalidSubscription = errors.New("invalid subscription type")

	// ErrEmptyTranscriptionText is returned when a transcription result
	// carries no text.
	ErrEmptyTranscriptionText = errors.New("transcription text cannot be empty")

	// ErrDailyLimitExceeded is returned when a free user has used up the
	// daily transcription quota.
	ErrDailyLimitExceeded = errors.New("daily transcription limit exceeded")

	// ErrAudioTooLong is returned when a media file exceeds the duration
	// cap for the user's plan.
	ErrAudioTooLong = errors.New("audio exceeds maximum allowed duration")

	// ErrFileTooLarge is returned when a media file exceeds the size cap.
	ErrFileTooLarge = errors.New("media file exceeds maximum allowed size")
)
