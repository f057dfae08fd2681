package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tcpchess/chessd/internal/store"
)

// UserStore implements store.Store on PostgreSQL.
type UserStore struct {
	db         *DB
	defaultElo uint16
}

var _ store.Store = (*UserStore)(nil)

// NewUserStore returns a Postgres-backed user store.
func NewUserStore(db *DB, defaultElo uint16) *UserStore {
	return &UserStore{db: db, defaultElo: defaultElo}
}

// Register implements store.Store.
func (s *UserStore) Register(ctx context.Context, username string) error {
	tag, err := s.db.pool.Exec(ctx,
		`INSERT INTO users (username, elo) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING`,
		username, int32(s.defaultElo),
	)
	if err != nil {
		return fmt.Errorf("registering %q: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registering %q: %w", username, store.ErrUsernameTaken)
	}
	return nil
}

// Validate implements store.Store.
func (s *UserStore) Validate(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("validating %q: %w", username, err)
	}
	return exists, nil
}

// Elo implements store.Store. A missing user reads as rating 0.
func (s *UserStore) Elo(ctx context.Context, username string) (uint16, error) {
	var elo int32
	err := s.db.pool.QueryRow(ctx,
		`SELECT elo FROM users WHERE username = $1`, username,
	).Scan(&elo)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("querying rating of %q: %w", username, err)
	}
	return uint16(elo), nil
}

// UpdateElo implements store.Store.
func (s *UserStore) UpdateElo(ctx context.Context, username string, elo uint16) error {
	_, err := s.db.pool.Exec(ctx,
		`INSERT INTO users (username, elo) VALUES ($1, $2)
		 ON CONFLICT (username) DO UPDATE SET elo = EXCLUDED.elo`,
		username, int32(elo),
	)
	if err != nil {
		return fmt.Errorf("updating rating of %q: %w", username, err)
	}
	return nil
}

// Snapshot implements store.Store.
func (s *UserStore) Snapshot(ctx context.Context) (map[string]store.Profile, error) {
	rows, err := s.db.pool.Query(ctx, `SELECT username, elo FROM users`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	out := make(map[string]store.Profile)
	for rows.Next() {
		var username string
		var elo int32
		if err := rows.Scan(&username, &elo); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		out[username] = store.Profile{Username: username, Elo: uint16(elo)}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return out, nil
}
