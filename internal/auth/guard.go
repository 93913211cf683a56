// ABOUTME: Session guard resolving a bearer token to an authenticated identity
// ABOUTME: Re-verifies and re-resolves on every call; nothing is cached

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/trowel/internal/store"
)

// ErrUnauthorized is returned for every authentication failure. The wrapped
// cause is for logs only.
var ErrUnauthorized = errors.New("unauthorized")

// ErrUnknownSubject marks a validly signed token whose user no longer exists.
var ErrUnknownSubject = errors.New("token subject not found")

// UserLookup is the part of the credential store the guard needs.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*store.User, error)
}

// Guard authenticates bearer tokens against the credential store.
type Guard struct {
	users    UserLookup
	verifier TokenVerifier
}

// NewGuard creates a Guard.
func NewGuard(users UserLookup, verifier TokenVerifier) *Guard {
	return &Guard{users: users, verifier: verifier}
}

// Authenticate verifies token and resolves its subject to an Identity.
// Failures wrap ErrUnauthorized together with the cause (ErrExpiredToken,
// ErrInvalidToken, ErrUnknownSubject). A store outage is returned as-is so the
// caller can report it as unavailable instead of unauthorized.
func (g *Guard) Authenticate(ctx context.Context, token string) (*Identity, error) {
	email, err := g.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	user, err := g.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrUnknownSubject)
		}
		return nil, fmt.Errorf("resolving token subject: %w", err)
	}

	username := user.Username
	if username == "" {
		username = DefaultUsername
	}

	return &Identity{
		Email:    user.Email,
		ID:       user.ID,
		Username: username,
	}, nil
}
