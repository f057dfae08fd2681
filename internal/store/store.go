// Package store persists user profiles and ratings.
package store

import (
	"context"
	"errors"
)

// ErrUsernameTaken is returned by Register when the username exists.
var ErrUsernameTaken = errors.New("username already exists")

// Profile is one persisted user record.
type Profile struct {
	Username string
	Elo      uint16
}

// Store is the profile persistence contract. Implementations are safe
// for concurrent use.
type Store interface {
	// Register inserts a new user with the default rating.
	// Returns ErrUsernameTaken if the username exists.
	Register(ctx context.Context, username string) error

	// Validate reports whether the username is registered.
	Validate(ctx context.Context, username string) (bool, error)

	// Elo returns the user's rating. Callers validate existence first;
	// a missing user reads as rating 0.
	Elo(ctx context.Context, username string) (uint16, error)

	// UpdateElo sets the user's rating and persists it.
	UpdateElo(ctx context.Context, username string, elo uint16) error

	// Snapshot returns a value copy of all profiles for enumeration.
	Snapshot(ctx context.Context) (map[string]Profile, error)
}
