package session

import (
	"context"
	"log/slog"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/auth/autherr"
	"taskhub/cmd/security/password"
	"taskhub/cmd/security/token"

	"github.com/google/uuid"
)

// Users is the subset of identity.Store the manager needs.
type Users interface {
	GetUserByUsername(ctx context.Context, username string) (identity.User, error)
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Issued is the result of a login or refresh.
type Issued struct {
	SessionID    uuid.UUID
	Username     string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// Manager implements login, refresh, logout and access-token authentication.
type Manager struct {
	users    Users
	sessions *Sessions
	codec    *token.Codec
	ttl      time.Duration
	log      *slog.Logger
	metrics  *Metrics

	// Now and Verify are replaceable in tests.
	Now    func() time.Time
	Verify func(plain, storedHash string) bool
}

// NewManager wires a Manager. log and metrics may be nil.
func NewManager(cfg Config, users Users, sessions *Sessions, codec *token.Codec, log *slog.Logger, metrics *Metrics) *Manager {
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = DefaultConfig().AccessTokenTTL
	}
	return &Manager{
		users:    users,
		sessions: sessions,
		codec:    codec,
		ttl:      ttl,
		log:      log,
		metrics:  metrics,
		Now:      func() time.Time { return time.Now().UTC() },
		Verify:   password.Verify,
	}
}

// Login verifies credentials and, only on success, creates a refresh session
// and mints an access token. Any credential failure is
// autherr.ErrInvalidCredentials.
func (m *Manager) Login(ctx context.Context, username, plain string) (Issued, error) {
	u, err := m.users.GetUserByUsername(ctx, username)
	switch {
	case identity.IsNotFound(err):
		password.VerifyDummy(plain)
		m.metrics.login("invalid")
		m.log.Info("auth.login.fail", "reason", "unknown_user")
		return Issued{}, autherr.ErrInvalidCredentials
	case err != nil:
		m.metrics.login("error")
		return Issued{}, err
	}

	if !m.Verify(plain, u.PasswordHash) {
		m.metrics.login("invalid")
		m.log.Info("auth.login.fail", "reason", "bad_password", "user_id", u.ID)
		return Issued{}, autherr.ErrInvalidCredentials
	}

	now := m.Now()
	sid, value, err := m.sessions.Create(ctx, u.ID, now)
	if err != nil {
		m.metrics.login("error")
		return Issued{}, err
	}

	access, accessExp, err := m.codec.Mint(u.Username, m.ttl, now)
	if err != nil {
		m.metrics.login("error")
		return Issued{}, err
	}

	m.metrics.login("ok")
	m.log.Info("auth.login.success", "user_id", u.ID, "session_id", sid.String())

	return Issued{
		SessionID:    sid,
		Username:     u.Username,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: value,
		RefreshExp:   now.Add(m.sessions.TTL()),
	}, nil
}

// Refresh rotates presented and mints an access token for the owning user.
func (m *Manager) Refresh(ctx context.Context, presented string) (Issued, error) {
	now := m.Now()

	row, value, err := m.sessions.rotate(ctx, presented, now)
	if err != nil {
		return Issued{}, err
	}

	u, err := m.users.GetUserByID(ctx, row.UserID)
	if identity.IsNotFound(err) {
		return Issued{}, autherr.ErrInvalidRefreshToken
	}
	if err != nil {
		return Issued{}, err
	}

	access, accessExp, err := m.codec.Mint(u.Username, m.ttl, now)
	if err != nil {
		return Issued{}, err
	}

	return Issued{
		SessionID:    row.ID,
		Username:     u.Username,
		AccessToken:  access,
		AccessExp:    accessExp,
		RefreshToken: value,
		RefreshExp:   now.Add(m.sessions.TTL()),
	}, nil
}

// Authenticate validates an access token and returns its subject (username).
func (m *Manager) Authenticate(accessToken string) (string, error) {
	return m.codec.Validate(accessToken, m.Now())
}

// Logout expires the session holding presented. Unknown values are a no-op.
func (m *Manager) Logout(ctx context.Context, presented string) error {
	return m.sessions.ExpireByValue(ctx, presented, m.Now())
}
