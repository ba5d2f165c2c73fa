package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	v1 "taskhub/contracts/notify/v1"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

type staticAuth map[string]string

func (a staticAuth) Authenticate(token string) (string, error) {
	if sub, ok := a[token]; ok {
		return sub, nil
	}
	return "", errors.New("bad token")
}

func newTestGateway(t *testing.T, cfg GatewayConfig) *WSGateway {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := NewRegistry(log, time.Second, nil)
	return NewWSGateway(log, reg, staticAuth{"good": "alice"}, cfg)
}

func startWSTestServer(t *testing.T, gw *WSGateway) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/tasks/{client_id}", gw.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, baseHTTPURL, clientID, query string, h http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	u, err := url.Parse(baseHTTPURL)
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws/tasks/" + clientID
	u.RawQuery = query

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
}

func waitForMembers(t *testing.T, r *Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r.Len() == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d members, got %d", n, r.Len())
}

func writeText(t *testing.T, conn *websocket.Conn, s string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte(s)); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) v1.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("conn.Read: %v", err)
	}
	var m v1.Message
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return m
}

func TestWSGateway_RequireAuth_UnauthorizedRejected(t *testing.T) {
	gw := newTestGateway(t, DefaultGatewayConfig())
	ts := startWSTestServer(t, gw)

	for _, q := range []string{"", "access_token=bad"} {
		conn, resp, err := dialWS(t, ts.URL, "c1", q, nil)
		if err == nil {
			_ = conn.CloseNow()
			t.Fatalf("query %q: expected dial failure", q)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("query %q: expected 401, got %+v", q, resp)
		}
	}
	if gw.Registry().Len() != 0 {
		t.Fatalf("rejected dial registered a client")
	}
}

func TestWSGateway_BroadcastsToAllConnections(t *testing.T) {
	gw := newTestGateway(t, DefaultGatewayConfig())
	ts := startWSTestServer(t, gw)

	a, _, err := dialWS(t, ts.URL, "a", "access_token=good", nil)
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	defer func() { _ = a.CloseNow() }()

	h := http.Header{}
	h.Set("Authorization", "Bearer good")
	b, _, err := dialWS(t, ts.URL, "b", "", h)
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	defer func() { _ = b.CloseNow() }()

	waitForMembers(t, gw.Registry(), 2)

	// A malformed frame is skipped and the connection stays usable.
	writeText(t, a, "not json")
	writeText(t, a, `{"message":"task 7 done"}`)

	for name, c := range map[string]*websocket.Conn{"a": a, "b": b} {
		if got := readMessage(t, c); got.Message != "task 7 done" {
			t.Fatalf("%s: expected relay, got %+v", name, got)
		}
	}

	if n := gw.Registry().Broadcast(context.Background(), v1.New("Task 1 deleted")); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	if got := readMessage(t, b); got.Message != "Task 1 deleted" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestWSGateway_DisconnectDeregisters(t *testing.T) {
	gw := newTestGateway(t, DefaultGatewayConfig())
	ts := startWSTestServer(t, gw)

	a, _, err := dialWS(t, ts.URL, "a", "access_token=good", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForMembers(t, gw.Registry(), 1)

	_ = a.Close(websocket.StatusNormalClosure, "bye")
	waitForMembers(t, gw.Registry(), 0)
}

func TestWSGateway_AnonymousWhenAuthDisabled(t *testing.T) {
	cfg := DefaultGatewayConfig()
	cfg.RequireAuth = false
	gw := newTestGateway(t, cfg)
	ts := startWSTestServer(t, gw)

	a, _, err := dialWS(t, ts.URL, "anon", "", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = a.CloseNow() }()

	waitForMembers(t, gw.Registry(), 1)
	c := gw.Registry().Snapshot()[0]
	if c.Tag != "anon" || c.Subject != "" {
		t.Fatalf("unexpected client tag=%q subject=%q", c.Tag, c.Subject)
	}
}

func TestWSGateway_OriginPolicy(t *testing.T) {
	cfg := DefaultGatewayConfig()
	cfg.OriginRequired = true
	gw := newTestGateway(t, cfg)
	ts := startWSTestServer(t, gw)

	_, resp, err := dialWS(t, ts.URL, "a", "access_token=good", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without origin, got err=%v resp=%+v", err, resp)
	}

	h := http.Header{}
	h.Set("Origin", "https://evil.example")
	_, resp, err = dialWS(t, ts.URL, "a", "access_token=good", h)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign origin, got err=%v resp=%+v", err, resp)
	}

	h.Set("Origin", "http://localhost:3000")
	conn, _, err := dialWS(t, ts.URL, "a", "access_token=good", h)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = conn.CloseNow()
}

func TestLoadGatewayConfig(t *testing.T) {
	t.Setenv("TASKHUB_WS_REQUIRE_AUTH", "false")
	t.Setenv("TASKHUB_WS_ALLOWED_ORIGINS", " https://app.example , ,http://localhost:5173")
	t.Setenv("TASKHUB_WS_WRITE_TIMEOUT", "2s")
	t.Setenv("TASKHUB_WS_HEARTBEAT_INTERVAL", "nonsense")

	cfg := LoadGatewayConfig()
	if cfg.RequireAuth {
		t.Fatalf("expected RequireAuth=false")
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "https://app.example|http://localhost:5173" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.WriteTimeout != 2*time.Second {
		t.Fatalf("unexpected write timeout %v", cfg.WriteTimeout)
	}
	if cfg.HeartbeatEvery != heartbeatInterval {
		t.Fatalf("invalid duration should fall back, got %v", cfg.HeartbeatEvery)
	}
	if cfg.ReadIdleTimeout != 0 {
		t.Fatalf("read idle should default to disabled, got %v", cfg.ReadIdleTimeout)
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatternsFromAllowedOrigins([]string{
		"http://localhost:3000", "http://LOCALHOST", "https://app.example", "", "127.0.0.1:8080",
	})
	want := "127.0.0.1|127.0.0.1:*|app.example|app.example:*|localhost|localhost:*"
	if strings.Join(got, "|") != want {
		t.Fatalf("expected %s, got %v", want, got)
	}
}
