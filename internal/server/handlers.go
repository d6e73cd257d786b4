package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/formatter"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/services"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError maps sentinel errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, shared.ErrAuthFailed), errors.Is(err, shared.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrRemote):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

// LoginRequest is the body of POST /lastfm/login.
type LoginRequest struct {
	User          string `json:"user"` // local user id or name
	Username      string `json:"username"`
	Password      string `json:"password"`
	SyncFavorites *bool  `json:"sync_favorites,omitempty"` // keeps the current setting when omitted
}

// LoginResponse is returned after a user was linked.
type LoginResponse struct {
	User          string `json:"user"`
	Lastfm        string `json:"lastfm"`
	SyncFavorites bool   `json:"sync_favorites"`
}

// LoginHandler exchanges Last.fm credentials for a session key and links it to a local user.
type LoginHandler struct {
	api    services.Service
	users  UserStore
	logger *log.Logger
}

// NewLoginHandler creates a [LoginHandler].
func NewLoginHandler(api services.Service, users UserStore, logger *log.Logger) *LoginHandler {
	return &LoginHandler{api: api, users: users, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *LoginHandler) Routes() []string {
	return []string{"/lastfm/login"}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.api == nil {
		writeError(w, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, shared.ErrMissingCredentials))
		return
	}

	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if strings.TrimSpace(req.User) == "" || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user, username and password are required"})
		return
	}

	user, err := h.users.Find(req.User)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.api.MobileSession(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("Last.fm login failed", "user", user.Name(), "lastfm", req.Username, "error", err)
		writeError(w, err)
		return
	}

	options := models.SyncOptions{SyncFavorites: true}
	if current := user.Lastfm(); current != nil {
		options = current.Options
	}
	if req.SyncFavorites != nil {
		options.SyncFavorites = *req.SyncFavorites
	}

	user.Link(models.RemoteUser{Username: session.Name, SessionKey: session.Key, Options: options})
	if err := h.users.Update(user); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("linked Last.fm account", "user", user.Name(), "lastfm", session.Name)
	writeJSON(w, http.StatusOK, LoginResponse{User: user.Name(), Lastfm: session.Name, SyncFavorites: options.SyncFavorites})
}

// ProgressView is the JSON form of a [tasks.ProgressUpdate].
type ProgressView struct {
	Phase   string  `json:"phase"`
	Step    int     `json:"step"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// StatusResponse is returned by GET /sync/status.
type StatusResponse struct {
	Syncing    bool              `json:"syncing"`
	Progress   *ProgressView     `json:"progress,omitempty"`
	LastResult *formatter.Report `json:"last_result,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
}

// SyncHandler starts batch syncs in the background and reports on them.
type SyncHandler struct {
	controller *tasks.BatchController
	users      UserStore
	logger     *log.Logger

	active atomic.Bool
	wg     sync.WaitGroup

	mu       sync.Mutex
	cancel   context.CancelFunc
	progress *tasks.ProgressUpdate
	result   *tasks.BatchResult
	lastErr  error
}

// NewSyncHandler creates a [SyncHandler].
func NewSyncHandler(controller *tasks.BatchController, users UserStore, logger *log.Logger) *SyncHandler {
	return &SyncHandler{controller: controller, users: users, logger: logger}
}

func (h *SyncHandler) syncing() bool {
	return h.active.Load() || (h.controller != nil && h.controller.Flag().Syncing())
}

// Start handles POST /sync. It answers 202 once the batch is launched and 409 while one is active.
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.controller == nil {
		writeError(w, shared.ErrServiceUnavailable)
		return
	}

	if h.controller.Flag().Syncing() || !h.active.CompareAndSwap(false, true) {
		writeError(w, shared.ErrSyncInProgress)
		return
	}

	users, err := h.users.List(map[string]any{"linked": true})
	if err != nil {
		h.active.Store(false)
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	progress := make(chan tasks.ProgressUpdate, 64)

	h.mu.Lock()
	h.cancel = cancel
	h.progress = nil
	h.mu.Unlock()

	done := make(chan struct{})
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		defer close(done)
		for update := range progress {
			h.mu.Lock()
			h.progress = &update
			h.mu.Unlock()
		}
	}()

	go func() {
		defer h.wg.Done()
		defer cancel()

		result, err := h.controller.RunBatch(ctx, users, progress)
		close(progress)
		<-done

		if err != nil {
			h.logger.Error("batch sync failed", "error", err)
		}

		h.mu.Lock()
		if result != nil {
			h.result = result
		}
		h.lastErr = err
		h.cancel = nil
		h.mu.Unlock()
		h.active.Store(false)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "users": len(users)})
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Syncing: h.syncing()}

	h.mu.Lock()
	if p := h.progress; p != nil {
		resp.Progress = &ProgressView{Phase: p.Phase.String(), Step: p.Step, Total: p.Total, Percent: p.Percent, Message: p.Message}
	}
	if h.result != nil {
		report := formatter.NewReport(h.result)
		resp.LastResult = &report
	}
	if h.lastErr != nil {
		resp.LastError = h.lastErr.Error()
	}
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// Cancel stops a running batch started by this handler.
func (h *SyncHandler) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// Wait blocks until the running batch, if any, has finished.
func (h *SyncHandler) Wait() { h.wg.Wait() }
