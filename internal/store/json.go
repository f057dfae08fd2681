package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore is a write-through user store backed by a JSON document:
// a top-level object keyed by username, each value {"elo": n}.
// Every mutation rewrites the document atomically (temp file + rename).
type JSONStore struct {
	path       string
	defaultElo uint16

	mu    sync.Mutex
	users map[string]uint16
}

type profileDoc struct {
	Elo uint16 `json:"elo"`
}

// OpenJSON loads the user store at path. A missing file means an empty
// store; the document is created on the first registration.
func OpenJSON(path string, defaultElo uint16) (*JSONStore, error) {
	s := &JSONStore{
		path:       path,
		defaultElo: defaultElo,
		users:      make(map[string]uint16),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading user store %s: %w", path, err)
	}

	var doc map[string]profileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing user store %s: %w", path, err)
	}
	for username, p := range doc {
		s.users[username] = p.Elo
	}

	return s, nil
}

// Register implements Store.
func (s *JSONStore) Register(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return fmt.Errorf("registering %q: %w", username, ErrUsernameTaken)
	}

	s.users[username] = s.defaultElo
	if err := s.persistLocked(); err != nil {
		delete(s.users, username)
		return fmt.Errorf("persisting registration of %q: %w", username, err)
	}
	return nil
}

// Validate implements Store.
func (s *JSONStore) Validate(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.users[username]
	return ok, nil
}

// Elo implements Store.
func (s *JSONStore) Elo(ctx context.Context, username string) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.users[username], nil
}

// UpdateElo implements Store. An unknown username gets a profile, matching
// the write-through behaviour of the document format.
func (s *JSONStore) UpdateElo(ctx context.Context, username string, elo uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.users[username]
	s.users[username] = elo
	if err := s.persistLocked(); err != nil {
		if existed {
			s.users[username] = prev
		} else {
			delete(s.users, username)
		}
		return fmt.Errorf("persisting rating of %q: %w", username, err)
	}
	return nil
}

// Snapshot implements Store.
func (s *JSONStore) Snapshot(ctx context.Context) (map[string]Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Profile, len(s.users))
	for username, elo := range s.users {
		out[username] = Profile{Username: username, Elo: elo}
	}
	return out, nil
}

func (s *JSONStore) persistLocked() error {
	doc := make(map[string]profileDoc, len(s.users))
	for username, elo := range s.users {
		doc[username] = profileDoc{Elo: elo}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing user store: %w", err)
	}
	return nil
}
