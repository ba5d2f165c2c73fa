package app

import (
	"net"
	"net/http"
	"strings"

	"taskhub/cmd/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routeMounter is implemented by the feature handlers.
type routeMounter interface {
	Routes(r chi.Router)
}

type routerDeps struct {
	log     Logger
	cfg     Config
	pool    *pgxpool.Pool
	metrics *prometheus.Registry

	auth    routeMounter
	tasks   routeMounter
	authn   httpx.Authenticator
	gateway http.Handler
}

const welcomeMessage = "Welcome to the Real-Time Task Manager API"

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, d.log) })
	r.Use(func(next http.Handler) http.Handler { return WithRecoverer(next, d.log) })
	r.Use(WithSecurityHeaders)
	if len(d.cfg.CORSAllowedOrigins) > 0 {
		r.Use(func(next http.Handler) http.Handler { return WithCORS(next, d.cfg, d.log) })
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed")
	})

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.cfg.ReadinessRequireDB && d.pool == nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "db not configured")
			return
		}
		if d.pool != nil {
			if err := pingDB(r.Context(), d.pool); err != nil {
				d.log.Info("readyz.db.not_ready", "err", err)
				httpx.WriteError(w, http.StatusServiceUnavailable, "not_ready", "db not ready")
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if d.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.metrics, promhttp.HandlerOpts{Registry: d.metrics}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		d.auth.Routes(api)
		api.Group(func(private chi.Router) {
			private.Use(httpx.RequireAuth(d.authn))
			d.tasks.Routes(private)
		})
		api.Get("/ws/tasks/{client_id}", d.gateway.ServeHTTP)
	})

	return r
}

// runtimeBaseURL turns a listen address into a URL a local client can dial.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
