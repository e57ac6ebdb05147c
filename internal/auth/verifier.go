// Package auth verifies the Supabase-issued JWTs that front-end clients
// attach to API requests.
package auth

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Verifier checks a bearer token and returns the authenticated user ID.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// FromHeader extracts the raw token from an Authorization header value.
func FromHeader(authorization string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(authorization[len(prefix):])
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
