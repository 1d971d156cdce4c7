// Package domain defines the core business entities and errors: messenger
// users with their freemium subscription state, per-transcription usage
// records, subscription change events, and persisted transcription results.
package domain
