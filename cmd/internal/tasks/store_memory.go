package tasks

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used in dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]Task
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]Task)}
}

func (s *MemoryStore) Create(ctx context.Context, in CreateInput) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	in, err := validateCreate(in)
	if err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	t := Task{
		ID:          s.nextID,
		Title:       in.Title,
		Description: in.Description,
		OwnerID:     in.OwnerID,
		CreatedAt:   in.Now,
		UpdatedAt:   in.Now,
	}
	s.rows[t.ID] = t
	return t, nil
}

func (s *MemoryStore) List(ctx context.Context, skip, limit int) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if skip < 0 || limit < 0 {
		return nil, invalid("skip and limit must be non-negative")
	}

	s.mu.RLock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Task, 0, min(limit, len(ids)))
	for i := skip; i < len(ids) && len(out) < limit; i++ {
		out = append(out, s.rows[ids[i]])
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.rows[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int64, in UpdateInput) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	in, err := validateUpdate(in)
	if err != nil {
		return Task{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.rows[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	t.apply(in)
	s.rows[id] = t
	return t, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.rows[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	delete(s.rows, id)
	return t, nil
}
