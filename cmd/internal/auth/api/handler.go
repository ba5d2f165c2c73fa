// Package authapi serves registration, login, refresh, logout and the
// current-user endpoint.
package authapi

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/auth/autherr"
	"taskhub/cmd/internal/auth/session"
	"taskhub/cmd/internal/httpx"
	"taskhub/cmd/security/password"

	"github.com/go-chi/chi/v5"
)

// Users is the subset of identity.Store the handlers need.
type Users interface {
	CreateUser(ctx context.Context, in identity.CreateUserInput) (identity.User, error)
	GetUserByUsername(ctx context.Context, username string) (identity.User, error)
}

// Handler wires HTTP auth endpoints to identity and session services.
type Handler struct {
	log       *slog.Logger
	cfg       Config
	users     Users
	sessions  *session.Manager
	passwords password.Config
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users Users, sessions *session.Manager, passwords password.Config) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if users == nil {
		return nil, errors.New("auth: nil user store")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session manager")
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = DefaultConfig().RefreshCookieName
	}
	return &Handler{
		log:       log,
		cfg:       cfg,
		users:     users,
		sessions:  sessions,
		passwords: passwords,
	}, nil
}

// Routes mounts the auth endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Put("/login", h.handleRefresh)
	r.Post("/logout", h.handleLogout)
	r.With(httpx.RequireAuth(h.sessions)).Get("/about_me", h.handleAboutMe)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	hash, err := h.passwords.Hash(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort),
			errors.Is(err, password.ErrPasswordTooLong),
			errors.Is(err, password.ErrWeakPassword):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_password", err.Error())
		default:
			h.log.Error("auth.register.hash.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	ctx := r.Context()
	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username:     req.Username,
		FullName:     req.FullName,
		Email:        req.Email,
		Age:          req.Age,
		PasswordHash: hash,
		Now:          time.Now().UTC(),
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			httpx.WriteError(w, http.StatusConflict, "conflict", "Username or email was already registered.")
		case identity.IsInvalidInput(err):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
		default:
			h.log.Error("auth.register.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	h.audit(ctx, r, "auth.register", slog.String("user_id", u.ID))
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, err := h.readLogin(w, r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	issued, err := h.sessions.Login(ctx, req.Username, req.Password)
	if err != nil {
		if autherr.IsAuth(err) {
			h.audit(ctx, r, "auth.login.failed", slog.String("identifier", identity.NormalizeUsername(req.Username)))
			httpx.WriteUnauthorized(w)
			return
		}
		h.log.Error("auth.login.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	h.audit(ctx, r, "auth.login.success", slog.String("session_id", issued.SessionID.String()))
	h.writeIssued(w, issued)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	presented, ok := h.refreshTokenFromCookie(r)
	if !ok {
		httpx.WriteUnauthorized(w)
		return
	}

	ctx := r.Context()
	issued, err := h.sessions.Refresh(ctx, presented)
	if err != nil {
		if autherr.IsAuth(err) {
			h.audit(ctx, r, "auth.refresh.failed")
			h.clearRefreshCookie(w)
			httpx.WriteUnauthorized(w)
			return
		}
		h.log.Error("auth.refresh.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	h.audit(ctx, r, "auth.refresh.success", slog.String("session_id", issued.SessionID.String()))
	h.writeIssued(w, issued)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if presented, ok := h.refreshTokenFromCookie(r); ok {
		if err := h.sessions.Logout(ctx, presented); err != nil {
			h.log.Error("auth.logout.fail", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
			return
		}
		h.audit(ctx, r, "auth.logout")
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAboutMe(w http.ResponseWriter, r *http.Request) {
	username, ok := httpx.Subject(r.Context())
	if !ok {
		httpx.WriteUnauthorized(w)
		return
	}

	u, err := h.users.GetUserByUsername(r.Context(), username)
	if err != nil {
		if identity.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		h.log.Error("auth.about_me.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// ---- helpers ----

func (h *Handler) writeIssued(w http.ResponseWriter, issued session.Issued) {
	h.setRefreshCookie(w, issued.RefreshToken, issued.RefreshExp)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: issued.AccessToken,
		TokenType:   "bearer",
	})
}

var errMissingCredentials = errors.New("missing credentials")

// readLogin accepts a JSON body or an OAuth2 password-style form.
func (h *Handler) readLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		if err := httpx.DecodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			return loginRequest{}, err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody())
		if err := r.ParseForm(); err != nil {
			return loginRequest{}, err
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return loginRequest{}, errMissingCredentials
	}
	return req, nil
}

func (h *Handler) maxBody() int64 {
	if h.cfg.MaxBodyBytes <= 0 {
		return httpx.DefaultMaxBodyBytes
	}
	return h.cfg.MaxBodyBytes
}
