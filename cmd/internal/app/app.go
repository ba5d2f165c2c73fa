// Package app wires the taskhub server runtime: config, logging, stores,
// HTTP routes and the realtime gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "taskhub/cmd/internal/auth/api"
	"taskhub/cmd/internal/auth/session"
	"taskhub/cmd/internal/realtime"
	"taskhub/cmd/internal/tasks"
	"taskhub/cmd/security/password"
	"taskhub/cmd/security/token"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the taskhub server runtime. It owns the stores, the HTTP handler
// tree and the connection registry.
type App struct {
	cfg Config
	log Logger

	stores   stores
	registry *realtime.Registry
	handler  http.Handler
}

// New constructs a fully wired App from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	hasher, err := NewTokenHasher(cfg)
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	codec, err := token.NewCodec(sessCfg.Secret, sessCfg.Algorithm, sessCfg.Issuer)
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sessMetrics := session.NewMetrics(reg)
	sessions := session.NewSessions(st.sessions, hasher, sessCfg, log, sessMetrics)
	manager := session.NewManager(sessCfg, st.users, sessions, codec, log, sessMetrics)

	authCfg := authapi.LoadConfigFromEnv()
	authHandler, err := authapi.NewHandler(log, authCfg, st.users, manager, pwCfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	gwCfg := realtime.LoadGatewayConfig()
	registry := realtime.NewRegistry(log, gwCfg.WriteTimeout, realtime.NewMetrics(reg))
	gateway := realtime.NewWSGateway(log, registry, manager, gwCfg)

	taskHandler := tasks.NewHandler(log, st.tasks, st.users, registry, authCfg.MaxBodyBytes)

	handler := newRouter(routerDeps{
		log:     log,
		cfg:     cfg,
		pool:    st.pool,
		metrics: reg,
		auth:    authHandler,
		tasks:   taskHandler,
		authn:   manager,
		gateway: gateway,
	})

	log.Info("security.config",
		"token_hmac", hasher.HMACEnabled(),
		"jwt_alg", sessCfg.Algorithm,
		"access_ttl", sessCfg.AccessTokenTTL.String(),
		"refresh_ttl", sessCfg.RefreshTokenTTL.String(),
		"ws_require_auth", gwCfg.RequireAuth,
	)

	return &App{
		cfg:      cfg,
		log:      log,
		stores:   st,
		registry: registry,
		handler:  handler,
	}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Close releases the registry and store resources. Run calls it on shutdown.
func (a *App) Close() {
	a.registry.Close()
	a.stores.Close()
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.stores.dbEnabled(),
		"api", base+"/api/v1",
		"ws", wsBaseURL(base)+"/api/v1/ws/tasks/{client_id}",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	a.registry.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.stores.Close()
		return err
	}

	a.stores.Close()
	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
