package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/storage/pgtest"
)

func TestPostgresStore_Lifecycle(t *testing.T) {
	t.Parallel()

	pool := pgtest.Open(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	users, err := identity.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("identity store: %v", err)
	}
	owner, err := users.CreateUser(ctx, identity.CreateUserInput{
		Username:     "owner",
		FullName:     "Owner",
		Email:        "owner@example.com",
		PasswordHash: "x",
		Now:          testNow,
	})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}

	s, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	a, err := s.Create(ctx, CreateInput{Title: "first", Description: "d", OwnerID: owner.ID, Now: testNow})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := s.Create(ctx, CreateInput{Title: "second", OwnerID: owner.ID, Now: testNow})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID <= a.ID {
		t.Fatalf("ids not increasing: %d then %d", a.ID, b.ID)
	}

	list, err := s.List(ctx, 1, 10)
	if err != nil || len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("List skip=1: %+v err=%v", list, err)
	}

	done := true
	later := testNow.Add(time.Hour)
	u, err := s.Update(ctx, a.ID, UpdateInput{Completed: &done, Now: later})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !u.Completed || u.Title != "first" || u.Description != "d" || !u.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected update: %+v", u)
	}

	if _, err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Update(ctx, a.ID, UpdateInput{Completed: &done}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestPostgresStore_UnknownOwner(t *testing.T) {
	t.Parallel()

	s, err := NewPostgresStore(pgtest.Open(t))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	_, err = s.Create(context.Background(), CreateInput{Title: "x", OwnerID: "01HZZZZZZZZZZZZZZZZZZZZZZZ"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
