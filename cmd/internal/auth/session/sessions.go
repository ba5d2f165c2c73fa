package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"taskhub/cmd/internal/auth/autherr"
	"taskhub/cmd/security/token"

	"github.com/google/uuid"
)

// maxPresentedLen bounds refresh values accepted from clients.
const maxPresentedLen = 4096

// Sessions owns refresh-session lifecycle on top of a Store: creation,
// rotation with reuse detection, and expiry.
type Sessions struct {
	store        Store
	hasher       token.Hasher
	ttl          time.Duration
	tokenBytes   int
	reuseExpires bool
	log          *slog.Logger
	metrics      *Metrics
}

// NewSessions wires a Sessions. log and metrics may be nil.
func NewSessions(store Store, hasher token.Hasher, cfg Config, log *slog.Logger, metrics *Metrics) *Sessions {
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.RefreshTokenTTL
	if ttl <= 0 {
		ttl = DefaultConfig().RefreshTokenTTL
	}
	return &Sessions{
		store:        store,
		hasher:       hasher,
		ttl:          ttl,
		tokenBytes:   cfg.RefreshTokenBytes,
		reuseExpires: cfg.ReuseExpiresSession,
		log:          log,
		metrics:      metrics,
	}
}

// TTL is the lifetime granted to a session on create and on every rotation.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Create stores a new session for userID and returns its id and plain value.
func (s *Sessions) Create(ctx context.Context, userID string, now time.Time) (uuid.UUID, string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		value, err := newRefreshValue(s.tokenBytes)
		if err != nil {
			return uuid.Nil, "", err
		}

		id, err := uuid.NewRandom()
		if err != nil {
			return uuid.Nil, "", err
		}

		err = s.store.Insert(ctx, Row{
			ID:        id,
			UserID:    userID,
			TokenHash: s.hasher.Hash(value),
			ExpiresAt: now.Add(s.ttl),
			CreatedAt: now,
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return uuid.Nil, "", err
		}
		s.metrics.sessionCreated()
		return id, value, nil
	}
	return uuid.Nil, "", ErrConflict
}

// ValidateAndRotate exchanges a live refresh value for a new one, extending
// the session to now+TTL. Unknown, expired and replayed values all return
// autherr.ErrInvalidRefreshToken.
func (s *Sessions) ValidateAndRotate(ctx context.Context, presented string, now time.Time) (userID string, newValue string, err error) {
	row, newValue, err := s.rotate(ctx, presented, now)
	if err != nil {
		return "", "", err
	}
	return row.UserID, newValue, nil
}

func (s *Sessions) rotate(ctx context.Context, presented string, now time.Time) (Row, string, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" || len(presented) > maxPresentedLen {
		s.metrics.refresh("invalid")
		return Row{}, "", autherr.ErrInvalidRefreshToken
	}

	newValue, err := newRefreshValue(s.tokenBytes)
	if err != nil {
		return Row{}, "", err
	}

	row, err := s.store.Rotate(ctx, RotateInput{
		PresentedHash: s.hasher.Hash(presented),
		NewHash:       s.hasher.Hash(newValue),
		NewExpiresAt:  now.Add(s.ttl),
		Now:           now,
	})

	var reuse ReuseError
	switch {
	case err == nil:
		s.metrics.refresh("ok")
		return row, newValue, nil
	case errors.As(err, &reuse):
		s.metrics.refresh("reuse")
		s.log.Warn("auth.refresh.reuse_detected",
			"session_id", reuse.SessionID.String(),
			"user_id", reuse.UserID,
			"expire_session", s.reuseExpires,
		)
		if s.reuseExpires {
			if xerr := s.store.Expire(ctx, reuse.SessionID, now); xerr != nil {
				s.log.Error("auth.refresh.reuse_expire.fail", "session_id", reuse.SessionID.String(), "err", xerr)
			}
		}
		return Row{}, "", autherr.ErrInvalidRefreshToken
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
		s.metrics.refresh("invalid")
		return Row{}, "", autherr.ErrInvalidRefreshToken
	default:
		s.metrics.refresh("error")
		return Row{}, "", err
	}
}

// Expire soft-deletes a session by moving its expiration to now. Idempotent.
func (s *Sessions) Expire(ctx context.Context, id uuid.UUID, now time.Time) error {
	return s.store.Expire(ctx, id, now)
}

// ExpireByValue expires the session currently holding presented.
// Unknown values are a no-op.
func (s *Sessions) ExpireByValue(ctx context.Context, presented string, now time.Time) error {
	presented = strings.TrimSpace(presented)
	if presented == "" || len(presented) > maxPresentedLen {
		return nil
	}

	row, err := s.store.FindByValue(ctx, s.hasher.Hash(presented))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Expire(ctx, row.ID, now)
}
