package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used in dev mode and tests.
// A single mutex serializes every mutation, which makes Rotate atomic.
type MemoryStore struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]Row
	byHash map[string]uuid.UUID
	byPrev map[string]uuid.UUID
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:   make(map[uuid.UUID]Row),
		byHash: make(map[string]uuid.UUID),
		byPrev: make(map[string]uuid.UUID),
	}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, row Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[row.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.byHash[row.TokenHash]; ok {
		return ErrConflict
	}
	s.rows[row.ID] = row
	s.byHash[row.TokenHash] = row.ID
	return nil
}

// FindByValue implements Store.
func (s *MemoryStore) FindByValue(ctx context.Context, tokenHash string) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[tokenHash]
	if !ok {
		return Row{}, ErrNotFound
	}
	return s.rows[id], nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, newHash string, newExpiresAt, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.updateLocked(id, newHash, newExpiresAt, now)
	return err
}

// Expire implements Store.
func (s *MemoryStore) Expire(ctx context.Context, id uuid.UUID, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	if row.ExpiresAt.After(now) {
		row.ExpiresAt = now
		t := now
		row.UpdatedAt = &t
		s.rows[id] = row
	}
	return nil
}

// Rotate implements Store.
func (s *MemoryStore) Rotate(ctx context.Context, in RotateInput) (Row, error) {
	if err := ctx.Err(); err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byHash[in.PresentedHash]
	if !ok {
		if prevID, reused := s.byPrev[in.PresentedHash]; reused {
			row := s.rows[prevID]
			return row, ReuseError{SessionID: row.ID, UserID: row.UserID}
		}
		return Row{}, ErrNotFound
	}

	row := s.rows[id]
	if !row.Live(in.Now) {
		return row, ErrExpired
	}
	return s.updateLocked(id, in.NewHash, in.NewExpiresAt, in.Now)
}

func (s *MemoryStore) updateLocked(id uuid.UUID, newHash string, newExpiresAt, now time.Time) (Row, error) {
	row, ok := s.rows[id]
	if !ok {
		return Row{}, ErrNotFound
	}
	if other, taken := s.byHash[newHash]; taken && other != id {
		return Row{}, ErrConflict
	}

	if row.PreviousTokenHash != "" {
		delete(s.byPrev, row.PreviousTokenHash)
	}
	delete(s.byHash, row.TokenHash)

	row.PreviousTokenHash = row.TokenHash
	row.TokenHash = newHash
	row.ExpiresAt = newExpiresAt
	t := now
	row.UpdatedAt = &t

	s.rows[id] = row
	s.byHash[newHash] = id
	s.byPrev[row.PreviousTokenHash] = id
	return row, nil
}
