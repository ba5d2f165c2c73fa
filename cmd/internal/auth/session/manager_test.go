package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/auth/autherr"
	"taskhub/cmd/security/password"
	"taskhub/cmd/security/token"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	mgr     *Manager
	users   *identity.MemoryStore
	store   *MemoryStore
	clock   *testClock
	metrics *Metrics
}

func cheapPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	cfg.Policy.MinLength = 4
	return cfg
}

func newFixture(t *testing.T, mutate func(*Config)) fixture {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Secret = []byte("test-secret-test-secret-test-sec")
	cfg.AccessTokenTTL = 15 * time.Minute
	cfg.RefreshTokenTTL = time.Hour
	if mutate != nil {
		mutate(&cfg)
	}

	codec, err := token.NewCodec(cfg.Secret, cfg.Algorithm, cfg.Issuer)
	require.NoError(t, err)

	users := identity.NewMemoryStore()
	store := NewMemoryStore()
	metrics := NewMetrics(prometheus.NewRegistry())
	sessions := NewSessions(store, token.NewHasher([]byte("hmac-key-hmac-key-hmac-key-hmac-")), cfg, nil, metrics)

	clock := &testClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	mgr := NewManager(cfg, users, sessions, codec, nil, metrics)
	mgr.Now = clock.Now

	return fixture{mgr: mgr, users: users, store: store, clock: clock, metrics: metrics}
}

func (f fixture) addUser(t *testing.T, username, plain string) identity.User {
	t.Helper()

	h, err := cheapPasswords().Hash(plain)
	require.NoError(t, err)

	u, err := f.users.CreateUser(context.Background(), identity.CreateUserInput{
		Username:     username,
		FullName:     "Test " + username,
		Email:        username + "@example.com",
		Age:          21,
		PasswordHash: h,
	})
	require.NoError(t, err)
	return u
}

func (f fixture) sessionCount() int {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return len(f.store.rows)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestManager_LoginAuthenticateRoundtrip(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "alice", "s3cret-pass")
	ctx := context.Background()

	iss, err := f.mgr.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, iss.AccessToken)
	require.NotEmpty(t, iss.RefreshToken)
	require.Equal(t, f.clock.Now().Add(time.Hour), iss.RefreshExp)
	require.Equal(t, f.clock.Now().Add(15*time.Minute), iss.AccessExp)

	sub, err := f.mgr.Authenticate(iss.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", sub)
	require.Equal(t, 1, f.sessionCount())
	require.Equal(t, 1.0, counterValue(t, f.metrics.loginsTotal.WithLabelValues("ok")))
}

func TestManager_LoginFailureCreatesNoSession(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "alice", "s3cret-pass")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.mgr.Login(ctx, "alice", "wrong-pass")
		require.ErrorIs(t, err, autherr.ErrInvalidCredentials)

		_, err = f.mgr.Login(ctx, "nobody", "whatever")
		require.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	}

	require.Equal(t, 0, f.sessionCount())
	require.Equal(t, 10.0, counterValue(t, f.metrics.loginsTotal.WithLabelValues("invalid")))
}

func TestManager_RefreshRotatesAndRejectsStale(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "bob", "bob-password")
	ctx := context.Background()

	first, err := f.mgr.Login(ctx, "bob", "bob-password")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	second, err := f.mgr.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, first.SessionID, second.SessionID)
	require.Equal(t, f.clock.Now().Add(time.Hour), second.RefreshExp)

	sub, err := f.mgr.Authenticate(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "bob", sub)

	for i := 0; i < 5; i++ {
		_, err = f.mgr.Refresh(ctx, first.RefreshToken)
		require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken)
	}
	require.Equal(t, 1, f.sessionCount())
}

func TestManager_ReuseExpiresWholeSession(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "carol", "carol-password")
	ctx := context.Background()

	first, err := f.mgr.Login(ctx, "carol", "carol-password")
	require.NoError(t, err)
	second, err := f.mgr.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = f.mgr.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken)

	_, err = f.mgr.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken, "current value must die with the session")
	require.Equal(t, 1.0, counterValue(t, f.metrics.refreshTotal.WithLabelValues("reuse")))
}

func TestManager_ReuseOnlyRejectsWhenDisabled(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.ReuseExpiresSession = false })
	f.addUser(t, "dave", "dave-password")
	ctx := context.Background()

	first, err := f.mgr.Login(ctx, "dave", "dave-password")
	require.NoError(t, err)
	second, err := f.mgr.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)

	_, err = f.mgr.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken)

	_, err = f.mgr.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestManager_ConcurrentRefreshExactlyOneWins(t *testing.T) {
	for _, reuseExpires := range []bool{true, false} {
		f := newFixture(t, func(c *Config) { c.ReuseExpiresSession = reuseExpires })
		f.addUser(t, "erin", "erin-password")
		ctx := context.Background()

		iss, err := f.mgr.Login(ctx, "erin", "erin-password")
		require.NoError(t, err)

		const n = 32
		var (
			wg      sync.WaitGroup
			ok      atomic.Int32
			invalid atomic.Int32
			start   = make(chan struct{})
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := f.mgr.Refresh(ctx, iss.RefreshToken)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, autherr.ErrInvalidRefreshToken):
					invalid.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.EqualValues(t, 1, ok.Load(), "reuseExpires=%v", reuseExpires)
		require.EqualValues(t, n-1, invalid.Load(), "reuseExpires=%v", reuseExpires)
	}
}

func TestManager_RefreshAfterExpiry(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "frank", "frank-password")
	ctx := context.Background()

	iss, err := f.mgr.Login(ctx, "frank", "frank-password")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.mgr.Refresh(ctx, iss.RefreshToken)
	require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken)
}

func TestManager_AuthenticateExpiredAccessToken(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "gina", "gina-password")

	iss, err := f.mgr.Login(context.Background(), "gina", "gina-password")
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	_, err = f.mgr.Authenticate(iss.AccessToken)
	require.ErrorIs(t, err, autherr.ErrExpired)
	require.True(t, autherr.IsAuth(err))
}

func TestManager_Logout(t *testing.T) {
	f := newFixture(t, nil)
	f.addUser(t, "hank", "hank-password")
	ctx := context.Background()

	iss, err := f.mgr.Login(ctx, "hank", "hank-password")
	require.NoError(t, err)

	require.NoError(t, f.mgr.Logout(ctx, iss.RefreshToken))
	require.NoError(t, f.mgr.Logout(ctx, iss.RefreshToken))
	require.NoError(t, f.mgr.Logout(ctx, "never-issued"))
	require.NoError(t, f.mgr.Logout(ctx, ""))

	_, err = f.mgr.Refresh(ctx, iss.RefreshToken)
	require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken)

	require.Equal(t, 1, f.sessionCount(), "logout is a soft delete")
}

func TestManager_RefreshGarbage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, v := range []string{"", "   ", "not-a-real-token", string(make([]byte, maxPresentedLen+1))} {
		_, err := f.mgr.Refresh(ctx, v)
		require.ErrorIs(t, err, autherr.ErrInvalidRefreshToken)
	}
}
