package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"taskhub/cmd/internal/httpx"
	v1 "taskhub/contracts/notify/v1"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const (
	wsCloseGrace = 1 * time.Second

	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"

	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second
	maxPingFailures   = 3
)

// Authenticator resolves a bearer access token to a subject.
type Authenticator = httpx.Authenticator

// GatewayConfig controls the WebSocket endpoint.
type GatewayConfig struct {
	// RequireAuth rejects the upgrade unless a valid access token is presented.
	RequireAuth bool

	// DevInsecure disables the library's origin verification entirely.
	DevInsecure    bool
	OriginRequired bool
	AllowedOrigins []string

	WriteTimeout time.Duration
	// ReadIdleTimeout of zero leaves reads unbounded; the heartbeat detects dead peers.
	ReadIdleTimeout time.Duration

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration
}

// DefaultGatewayConfig returns the production defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RequireAuth:      true,
		OriginRequired:   false,
		AllowedOrigins:   splitCSV(wsDefaultAllowedOrigins),
		WriteTimeout:     defaultWriteTimeout,
		HeartbeatEvery:   heartbeatInterval,
		HeartbeatTimeout: heartbeatTimeout,
	}
}

// LoadGatewayConfig reads TASKHUB_WS_* over the defaults. Invalid values fall back.
func LoadGatewayConfig() GatewayConfig {
	cfg := DefaultGatewayConfig()

	cfg.RequireAuth = envBoolWS("TASKHUB_WS_REQUIRE_AUTH", cfg.RequireAuth)
	cfg.DevInsecure = envBoolWS("TASKHUB_WS_DEV_INSECURE", cfg.DevInsecure)
	cfg.OriginRequired = envBoolWS("TASKHUB_WS_ORIGIN_REQUIRED", cfg.OriginRequired)
	if raw, ok := os.LookupEnv("TASKHUB_WS_ALLOWED_ORIGINS"); ok {
		cfg.AllowedOrigins = splitCSV(raw)
	}

	cfg.WriteTimeout = envDurationWS("TASKHUB_WS_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.ReadIdleTimeout = envDurationWS("TASKHUB_WS_READ_IDLE_TIMEOUT", cfg.ReadIdleTimeout)
	cfg.HeartbeatEvery = envDurationWS("TASKHUB_WS_HEARTBEAT_INTERVAL", cfg.HeartbeatEvery)
	cfg.HeartbeatTimeout = envDurationWS("TASKHUB_WS_HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout)
	return cfg
}

// WSGateway is the WebSocket entrypoint for task notifications.
//
// Every message a connection sends is rebroadcast to all open connections,
// the sender included.
type WSGateway struct {
	log      *slog.Logger
	registry *Registry
	auth     Authenticator
	cfg      GatewayConfig

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string
}

// NewWSGateway constructs a gateway over registry. auth may be nil only when
// cfg.RequireAuth is false.
func NewWSGateway(log *slog.Logger, registry *Registry, auth Authenticator, cfg GatewayConfig) *WSGateway {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry(log, cfg.WriteTimeout, nil)
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = heartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = heartbeatTimeout
	}

	return &WSGateway{
		log:            log,
		registry:       registry,
		auth:           auth,
		cfg:            cfg,
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}
}

// Registry returns the registry this gateway feeds.
func (g *WSGateway) Registry() *Registry { return g.registry }

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS authenticates, upgrades, and runs the receive/broadcast loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	tag := strings.TrimSpace(chi.URLParam(r, "client_id"))

	subject, err := g.authenticate(r)
	if err != nil {
		g.log.Info("ws.reject.auth", "client_id", tag, "remote", r.RemoteAddr)
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	raw, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}

	connID, err := NewConnectionID(time.Now().UTC())
	if err != nil {
		g.log.Error("ws.id.fail", "err", err)
		_ = raw.Close(websocket.StatusInternalError, "id")
		return
	}

	client := NewClient(connID, tag, subject, NewWSConn(raw))
	if err := g.registry.Register(client); err != nil {
		g.log.Error("ws.register.fail", "conn_id", connID, "err", err)
		_ = raw.Close(websocket.StatusInternalError, "register")
		return
	}
	defer g.registry.Deregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		g.heartbeat(ctx, raw, client)
	}()

	g.log.Info("ws.open", "conn_id", connID, "client_id", tag, "subject", subject)

	for {
		readCtx, readCancel := ctx, context.CancelFunc(func() {})
		if g.cfg.ReadIdleTimeout > 0 {
			readCtx, readCancel = context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		}
		msg, err := g.registry.ReceiveOne(readCtx, client)
		readCancel()

		if err != nil {
			if errors.Is(err, ErrBadMessage) {
				g.log.Info("ws.read.bad_message", "conn_id", connID, "err", err)
				continue
			}
			break
		}

		n := g.registry.Broadcast(ctx, msg)
		g.log.Debug("ws.relay", "conn_id", connID, "delivered", n)
	}

	g.registry.Deregister(client)
	cancel()

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.close", "conn_id", connID, "client_id", tag)
}

func (g *WSGateway) heartbeat(ctx context.Context, conn *websocket.Conn, client *Client) {
	t := time.NewTicker(g.cfg.HeartbeatEvery)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
			err := conn.Ping(hbCtx)
			hbCancel()

			if err != nil {
				failures++
				g.log.Info("ws.ping.fail", "conn_id", client.ID, "failures", failures, "err", err)
				if failures >= maxPingFailures {
					g.registry.Deregister(client)
					return
				}
				continue
			}
			failures = 0
		}
	}
}

// ---- auth ----

var errNoToken = errors.New("missing access token")

func (g *WSGateway) authenticate(r *http.Request) (string, error) {
	tok := httpx.BearerToken(r)
	if tok == "" {
		tok = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}

	if !g.cfg.RequireAuth && tok == "" {
		return "", nil
	}
	if tok == "" {
		return "", errNoToken
	}
	if g.auth == nil {
		return "", errors.New("no authenticator configured")
	}
	return g.auth.Authenticate(tok)
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}
	if g.cfg.DevInsecure {
		return nil
	}

	// Same-host requests are authorized by websocket.Accept itself.
	originHost := originHostOnly(origin)
	if originHost != "" && originHost == originHostOnly(r.Host) {
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	for _, a := range g.cfg.AllowedOrigins {
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		s = strings.TrimSpace(u.Host)
		if s == "" {
			return ""
		}
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins turns the allowlist into host
// patterns for websocket.Accept so both checks agree. Accept matches against
// host[:port], so each host also gets an any-port pattern.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	out := make([]string, 0, 2*len(allowed))
	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		out = append(out, h, h+":*")
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
