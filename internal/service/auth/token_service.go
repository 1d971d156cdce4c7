// Package auth issues and validates the bearer tokens protecting the
// operator API. Tokens are HMAC-SHA256 JWTs signed with the admin secret;
// there are no per-user accounts, only the single operator subject.
package auth

import (
	"context"
	"time"
)

// adminSubject is the subject claim carried by every operator token.
const adminSubject = "admin"

// TokenService manages operator API tokens.
type TokenService interface {
	// GenerateToken creates a signed operator token.
	GenerateToken(ctx context.Context) (string, error)

	// ValidateToken verifies the token and returns its claims. Returns
	// ErrExpiredToken, ErrTokenNotYetValid, or ErrInvalidToken on
	// failure.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of an operator token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
