package authapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/auth/session"
	"taskhub/cmd/security/password"
	"taskhub/cmd/security/token"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	srv *httptest.Server
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := session.DefaultConfig()
	cfg.Secret = []byte("api-test-secret-api-test-secret!")

	codec, err := token.NewCodec(cfg.Secret, cfg.Algorithm, cfg.Issuer)
	require.NoError(t, err)

	users := identity.NewMemoryStore()
	sessions := session.NewSessions(session.NewMemoryStore(), token.NewHasher(nil), cfg, log, nil)
	mgr := session.NewManager(cfg, users, sessions, codec, log, nil)

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	h, err := NewHandler(log, DefaultConfig(), users, mgr, pw)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return apiFixture{srv: srv}
}

type apiCall struct {
	method      string
	path        string
	body        string
	contentType string
	bearer      string
	cookie      *http.Cookie
}

func (f apiFixture) call(t *testing.T, c apiCall) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if c.body != "" {
		rd = strings.NewReader(c.body)
	}
	req, err := http.NewRequest(c.method, f.srv.URL+c.path, rd)
	require.NoError(t, err)
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, b
}

func (f apiFixture) register(t *testing.T, username, email string) {
	t.Helper()
	res, body := f.call(t, apiCall{
		method:      http.MethodPost,
		path:        "/api/v1/register",
		contentType: "application/json",
		body:        `{"username":"` + username + `","full_name":"Test","email":"` + email + `","age":30,"password":"correct horse battery"}`,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
}

func (f apiFixture) loginForm(t *testing.T, username, pw string) (*http.Response, []byte) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {pw}}
	return f.call(t, apiCall{
		method:      http.MethodPost,
		path:        "/api/v1/login",
		contentType: "application/x-www-form-urlencoded",
		body:        form.Encode(),
	})
}

func refreshCookie(t *testing.T, res *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range res.Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	t.Fatalf("refreshToken cookie not set")
	return nil
}

func accessToken(t *testing.T, body []byte) string {
	t.Helper()
	var tr tokenResponse
	require.NoError(t, json.Unmarshal(body, &tr), string(body))
	require.Equal(t, "bearer", tr.TokenType)
	require.NotEmpty(t, tr.AccessToken)
	return tr.AccessToken
}

func TestRegister(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice", "alice@example.com")

	for _, body := range []string{
		`{"username":"ALICE","full_name":"x","email":"other@example.com","age":1,"password":"correct horse battery"}`,
		`{"username":"bob","full_name":"x","email":"Alice@Example.com","age":1,"password":"correct horse battery"}`,
	} {
		res, b := f.call(t, apiCall{method: http.MethodPost, path: "/api/v1/register", contentType: "application/json", body: body})
		require.Equal(t, http.StatusConflict, res.StatusCode)
		require.Contains(t, string(b), "Username or email was already registered.")
	}

	res, _ := f.call(t, apiCall{
		method: http.MethodPost, path: "/api/v1/register", contentType: "application/json",
		body: `{"username":"carol","full_name":"x","email":"carol@example.com","age":1,"password":"short"}`,
	})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestLoginRefreshLogoutFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice", "alice@example.com")

	res, body := f.loginForm(t, "alice", "correct horse battery")
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	access := accessToken(t, body)
	first := refreshCookie(t, res)
	require.True(t, first.HttpOnly)
	require.Equal(t, "/api/v1", first.Path)
	require.True(t, first.Expires.After(time.Now()))

	res, body = f.call(t, apiCall{method: http.MethodGet, path: "/api/v1/about_me", bearer: access})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var me userResponse
	require.NoError(t, json.Unmarshal(body, &me))
	require.Equal(t, "alice", me.Username)
	require.Equal(t, "alice@example.com", me.Email)

	res, body = f.call(t, apiCall{method: http.MethodPut, path: "/api/v1/login", cookie: first})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	accessToken(t, body)
	second := refreshCookie(t, res)
	require.NotEqual(t, first.Value, second.Value)

	// The replaced value is dead, and replaying it also kills the session.
	res, body = f.call(t, apiCall{method: http.MethodPut, path: "/api/v1/login", cookie: first})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Contains(t, string(body), `"unauthorized"`)

	res, _ = f.call(t, apiCall{method: http.MethodPut, path: "/api/v1/login", cookie: second})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// Fresh login, then logout.
	res, _ = f.loginForm(t, "alice", "correct horse battery")
	third := refreshCookie(t, res)

	res, _ = f.call(t, apiCall{method: http.MethodPost, path: "/api/v1/logout", cookie: third})
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res, _ = f.call(t, apiCall{method: http.MethodPut, path: "/api/v1/login", cookie: third})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestLoginJSON(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice", "alice@example.com")

	res, body := f.call(t, apiCall{
		method: http.MethodPost, path: "/api/v1/login", contentType: "application/json",
		body: `{"username":"alice","password":"correct horse battery"}`,
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(body))
	accessToken(t, body)
}

func TestLoginFailures(t *testing.T) {
	f := newAPIFixture(t)
	f.register(t, "alice", "alice@example.com")

	for _, creds := range [][2]string{{"alice", "wrong password!"}, {"nobody", "correct horse battery"}} {
		res, body := f.loginForm(t, creds[0], creds[1])
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)
		require.Contains(t, string(body), `"unauthorized"`)
		require.Empty(t, res.Cookies(), "failed login must not set a cookie")
	}

	res, _ := f.loginForm(t, "", "")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestAboutMeAndRefreshRequireCredentials(t *testing.T) {
	f := newAPIFixture(t)

	res, _ := f.call(t, apiCall{method: http.MethodGet, path: "/api/v1/about_me"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = f.call(t, apiCall{method: http.MethodGet, path: "/api/v1/about_me", bearer: "garbage"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = f.call(t, apiCall{method: http.MethodPut, path: "/api/v1/login"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = f.call(t, apiCall{method: http.MethodPost, path: "/api/v1/logout"})
	require.Equal(t, http.StatusNoContent, res.StatusCode)
}
