package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskhub/cmd/identity"
	"taskhub/cmd/internal/httpx"
	v1 "taskhub/contracts/notify/v1"

	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// Notifier fans a message out to connected clients.
type Notifier interface {
	Broadcast(ctx context.Context, msg v1.Message) int
}

// Owners resolves the authenticated username to its user record.
type Owners interface {
	GetUserByUsername(ctx context.Context, username string) (identity.User, error)
}

// Handler serves the task endpoints. Routes must sit behind httpx.RequireAuth.
type Handler struct {
	log      *slog.Logger
	store    Store
	owners   Owners
	notifier Notifier
	maxBody  int64

	now func() time.Time
}

// NewHandler wires a Handler. notifier may be nil.
func NewHandler(log *slog.Logger, store Store, owners Owners, notifier Notifier, maxBody int64) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:      log,
		store:    store,
		owners:   owners,
		notifier: notifier,
		maxBody:  maxBody,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Routes mounts the task endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/tasks", h.handleCreate)
	r.Get("/tasks", h.handleList)
	r.Get("/tasks/{id}", h.handleGet)
	r.Put("/tasks/{id}", h.handleUpdate)
	r.Delete("/tasks/{id}", h.handleDelete)
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

type taskResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toResponse(t Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	username, ok := httpx.Subject(r.Context())
	if !ok {
		httpx.WriteUnauthorized(w)
		return
	}

	var req createRequest
	if err := httpx.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	owner, err := h.owners.GetUserByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			httpx.WriteUnauthorized(w)
			return
		}
		h.fail(w, "tasks.create.owner.fail", err)
		return
	}

	t, err := h.store.Create(ctx, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     owner.ID,
		Now:         h.now(),
	})
	if err != nil {
		h.writeStoreError(w, "tasks.create.fail", err)
		return
	}

	h.log.Info("tasks.create", "task_id", t.ID, "owner_id", owner.ID)
	h.notify(ctx, fmt.Sprintf("New task created: %s", t.Title))
	httpx.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
		return
	}
	limit = min(limit, maxListLimit)

	list, err := h.store.List(r.Context(), skip, limit)
	if err != nil {
		h.writeStoreError(w, "tasks.list.fail", err)
		return
	}

	out := make([]taskResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toResponse(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, "tasks.get.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := httpx.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	t, err := h.store.Update(ctx, id, UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		Now:         h.now(),
	})
	if err != nil {
		h.writeStoreError(w, "tasks.update.fail", err)
		return
	}

	h.log.Info("tasks.update", "task_id", t.ID)
	h.notify(ctx, fmt.Sprintf("Task %d updated", t.ID))
	httpx.WriteJSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	t, err := h.store.Delete(ctx, id)
	if err != nil {
		h.writeStoreError(w, "tasks.delete.fail", err)
		return
	}

	h.log.Info("tasks.delete", "task_id", t.ID)
	h.notify(ctx, fmt.Sprintf("Task %d deleted", t.ID))
	httpx.WriteJSON(w, http.StatusOK, toResponse(t))
}

// ---- helpers ----

func (h *Handler) notify(ctx context.Context, text string) {
	if h.notifier == nil {
		return
	}
	// The fan-out outlives the request context.
	n := h.notifier.Broadcast(context.WithoutCancel(ctx), v1.New(text))
	h.log.Debug("tasks.notify", "delivered", n)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Task not found")
	case errors.Is(err, ErrInvalidInput):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.fail(w, event, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, "err", err)
	httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
}

func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Task not found")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
