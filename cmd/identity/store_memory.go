package identity

import (
	"context"
	"sync"

	"taskhub/cmd/identity/ids"
)

// MemoryStore is an in-process Store used in dev mode and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]User
	byUsername map[string]string
	byEmail    map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// CreateUser implements Store.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return User{}, err
	}

	id, err := ids.NewULID(in.Now)
	if err != nil {
		return User{}, err
	}

	un := NormalizeUsername(in.Username)
	em := NormalizeEmail(in.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[un]; ok {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	if _, ok := s.byEmail[em]; ok {
		return User{}, ConflictError{Op: op, Field: "email"}
	}

	u := User{
		ID:           id,
		Username:     in.Username,
		FullName:     in.FullName,
		Email:        in.Email,
		Age:          in.Age,
		PasswordHash: in.PasswordHash,
		CreatedAt:    in.Now,
	}
	s.byID[id] = u
	s.byUsername[un] = id
	s.byEmail[em] = id
	return u, nil
}

// GetUserByUsername implements Store.
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByUsername", Resource: "user"}
	}
	return s.byID[id], nil
}

// GetUserByID implements Store.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return u, nil
}
