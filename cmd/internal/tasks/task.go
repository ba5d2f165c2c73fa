// Package tasks implements task CRUD and announces every mutation on the
// notification channel.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxTitleChars       = 200
	maxDescriptionChars = 4000
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid task input")
)

// Task is one stored task.
type Task struct {
	ID          int64
	Title       string
	Description string
	Completed   bool
	OwnerID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateInput carries the fields of a new task.
type CreateInput struct {
	Title       string
	Description string
	OwnerID     string
	Now         time.Time
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	Title       *string
	Description *string
	Completed   *bool
	Now         time.Time
}

// Store persists tasks.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Task, error)
	// List returns tasks ordered by id.
	List(ctx context.Context, skip, limit int) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Task, error)
	// Delete removes the task and returns it as it was.
	Delete(ctx context.Context, id int64) (Task, error)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func validateCreate(in CreateInput) (CreateInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	if in.Title == "" {
		return in, invalid("title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleChars {
		return in, invalid("title too long")
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionChars {
		return in, invalid("description too long")
	}
	if in.OwnerID == "" {
		return in, invalid("owner is required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func validateUpdate(in UpdateInput) (UpdateInput, error) {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return in, invalid("title must not be empty")
		}
		if utf8.RuneCountInString(t) > maxTitleChars {
			return in, invalid("title too long")
		}
		in.Title = &t
	}
	if in.Description != nil && utf8.RuneCountInString(*in.Description) > maxDescriptionChars {
		return in, invalid("description too long")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func (t *Task) apply(in UpdateInput) {
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Completed != nil {
		t.Completed = *in.Completed
	}
	t.UpdatedAt = in.Now
}
