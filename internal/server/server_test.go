package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	th "github.com/desertthunder/lfmx/internal/testing"
	"github.com/goccy/go-json"
)

type mockUsers struct {
	mu      sync.Mutex
	users   []*models.User
	listErr error
	updated int
}

func (m *mockUsers) Find(idOrName string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID() == idOrName || u.Name() == idOrName {
			return u, nil
		}
	}
	return nil, shared.ErrUserNotFound
}

func (m *mockUsers) Update(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated++
	return nil
}

func (m *mockUsers) List(criteria map[string]any) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.User
	for _, u := range m.users {
		if u.CanSync() {
			out = append(out, u)
		}
	}
	return out, nil
}

// gateSyncer blocks every SyncUser call until release is closed.
type gateSyncer struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGateSyncer() *gateSyncer {
	return &gateSyncer{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateSyncer) SyncUser(ctx context.Context, user *models.User, span tasks.ProgressSpan, progress chan<- tasks.ProgressUpdate) (tasks.SyncResult, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return tasks.SyncResult{User: user.Name(), LocalSongs: 4, RemoteSongs: 4, MatchedSongs: 3}, nil
	case <-ctx.Done():
		return tasks.SyncResult{User: user.Name()}, &tasks.SyncError{User: user.Name(), Err: shared.ErrCancelled}
	}
}

func linked(name string) *models.User {
	u := models.NewUser(1, name)
	u.SetID(name + "-id")
	u.Link(models.RemoteUser{Username: name + "_fm", SessionKey: "sk", Options: models.SyncOptions{SyncFavorites: true}})
	return u
}

func newTestServer(t *testing.T, api *th.MockService, users *mockUsers, syncer tasks.UserSyncer) *Server {
	t.Helper()
	controller := tasks.NewBatchController(tasks.BatchOpts{
		Syncer:  syncer,
		Flag:    &tasks.SyncFlag{},
		Trigger: models.TriggerHTTP,
		Logger:  shared.NewLogger(io.Discard),
	})
	return New(Options{API: api, Users: users, Controller: controller, Logger: shared.NewLogger(io.Discard)})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodPost, "/sync", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}))
		router.Handle(http.MethodGet, "/sync", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		if rec := do(t, router, http.MethodPost, "/sync", ""); rec.Code != http.StatusAccepted {
			t.Errorf("POST: expected 202, got %d", rec.Code)
		}
		if rec := do(t, router, http.MethodGet, "/sync", ""); rec.Code != http.StatusOK {
			t.Errorf("GET: expected 200, got %d", rec.Code)
		}
		if rec := do(t, router, http.MethodDelete, "/sync", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("DELETE: expected 405, got %d", rec.Code)
		}
		if rec := do(t, router, http.MethodGet, "/sync/other", ""); rec.Code != http.StatusNotFound {
			t.Errorf("unknown path: expected 404, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		do(t, router, http.MethodGet, "/", "")
		if strings.Join(order, ",") != "first,second" {
			t.Errorf("unexpected order %v", order)
		}
		if rec := do(t, router, http.MethodGet, "/nested", ""); rec.Code != http.StatusNotFound {
			t.Errorf("expected trailing slash route to be exact, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("RequestID", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		rec := do(t, h, http.MethodGet, "/", "")
		if seen == "" || rec.Header().Get("X-Request-ID") != seen {
			t.Errorf("expected generated request id, got %q / %q", seen, rec.Header().Get("X-Request-ID"))
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "upstream")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != "upstream" {
			t.Errorf("expected upstream id to be kept, got %q", seen)
		}
	})

	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		h := Logging(shared.NewLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := do(t, h, http.MethodGet, "/brew", "")
		if rec.Code != http.StatusTeapot {
			t.Errorf("expected status to pass through, got %d", rec.Code)
		}
		if out := buf.String(); !strings.Contains(out, "/brew") || !strings.Contains(out, "418") {
			t.Errorf("expected request to be logged, got %q", out)
		}
	})
}

func TestLoginHandler(t *testing.T) {
	api := &th.MockService{Sessions: map[string]string{"alice_fm:secret": "sk-alice"}}

	t.Run("links user", func(t *testing.T) {
		users := &mockUsers{users: []*models.User{models.NewUser(1, "alice")}}
		srv := newTestServer(t, api, users, newGateSyncer())

		rec := do(t, srv, http.MethodPost, "/lastfm/login", `{"user":"alice","username":"alice_fm","password":"secret"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		resp := decode[LoginResponse](t, rec)
		if resp.Lastfm != "alice_fm" || !resp.SyncFavorites {
			t.Errorf("unexpected response %+v", resp)
		}

		account := users.users[0].Lastfm()
		if account == nil || account.SessionKey != "sk-alice" {
			t.Errorf("expected session key to be stored, got %+v", account)
		}
		if users.updated != 1 {
			t.Errorf("expected one update, got %d", users.updated)
		}
	})

	t.Run("keeps options unless given", func(t *testing.T) {
		user := models.NewUser(1, "alice")
		user.Link(models.RemoteUser{Username: "old", SessionKey: "old", Options: models.SyncOptions{SyncFavorites: false}})
		users := &mockUsers{users: []*models.User{user}}
		srv := newTestServer(t, api, users, newGateSyncer())

		rec := do(t, srv, http.MethodPost, "/lastfm/login", `{"user":"alice","username":"alice_fm","password":"secret"}`)
		if resp := decode[LoginResponse](t, rec); resp.SyncFavorites {
			t.Error("expected sync_favorites to stay off")
		}

		rec = do(t, srv, http.MethodPost, "/lastfm/login", `{"user":"alice","username":"alice_fm","password":"secret","sync_favorites":true}`)
		if resp := decode[LoginResponse](t, rec); !resp.SyncFavorites {
			t.Error("expected sync_favorites to be switched on")
		}
	})

	t.Run("errors", func(t *testing.T) {
		users := &mockUsers{users: []*models.User{models.NewUser(1, "alice")}}
		srv := newTestServer(t, api, users, newGateSyncer())

		tests := []struct {
			name string
			body string
			want int
		}{
			{"malformed body", `{`, http.StatusBadRequest},
			{"missing password", `{"user":"alice","username":"alice_fm"}`, http.StatusBadRequest},
			{"unknown user", `{"user":"bob","username":"bob_fm","password":"x"}`, http.StatusNotFound},
			{"bad credentials", `{"user":"alice","username":"alice_fm","password":"wrong"}`, http.StatusUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, srv, http.MethodPost, "/lastfm/login", tt.body)
				if rec.Code != tt.want {
					t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
				}
				if resp := decode[errorResponse](t, rec); resp.Error == "" {
					t.Error("expected error message")
				}
			})
		}

		if users.users[0].Lastfm() != nil {
			t.Error("failed logins must not link the user")
		}
	})

	t.Run("remote unavailable", func(t *testing.T) {
		down := &th.MockService{Err: shared.ErrServiceUnavailable}
		users := &mockUsers{users: []*models.User{models.NewUser(1, "alice")}}
		srv := newTestServer(t, down, users, newGateSyncer())

		rec := do(t, srv, http.MethodPost, "/lastfm/login", `{"user":"alice","username":"alice_fm","password":"secret"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestSyncHandler(t *testing.T) {
	t.Run("start, conflict and status", func(t *testing.T) {
		syncer := newGateSyncer()
		users := &mockUsers{users: []*models.User{linked("alice"), models.NewUser(2, "bob")}}
		srv := newTestServer(t, &th.MockService{}, users, syncer)

		rec := do(t, srv, http.MethodPost, "/sync", "")
		if rec.Code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
		}
		started := decode[map[string]any](t, rec)
		if started["users"] != float64(1) {
			t.Errorf("expected 1 eligible user, got %v", started["users"])
		}

		select {
		case <-syncer.started:
		case <-time.After(2 * time.Second):
			t.Fatal("batch did not start")
		}

		if rec := do(t, srv, http.MethodPost, "/sync", ""); rec.Code != http.StatusConflict {
			t.Errorf("expected 409 while syncing, got %d", rec.Code)
		}

		status := decode[StatusResponse](t, do(t, srv, http.MethodGet, "/sync/status", ""))
		if !status.Syncing {
			t.Error("expected status to report syncing")
		}

		close(syncer.release)
		srv.Wait()

		status = decode[StatusResponse](t, do(t, srv, http.MethodGet, "/sync/status", ""))
		if status.Syncing {
			t.Error("expected sync to be finished")
		}
		if status.LastResult == nil || status.LastResult.Counts.MatchedSongs != 3 {
			t.Fatalf("expected last result, got %+v", status.LastResult)
		}
		if status.LastResult.Trigger != models.TriggerHTTP {
			t.Errorf("expected http trigger, got %s", status.LastResult.Trigger)
		}
		if status.Progress == nil || status.Progress.Phase != tasks.FinishBatch.String() {
			t.Errorf("expected final progress update, got %+v", status.Progress)
		}

		if rec := do(t, srv, http.MethodPost, "/sync", ""); rec.Code != http.StatusAccepted {
			t.Errorf("expected a new batch to start, got %d", rec.Code)
		}
		srv.Wait()
	})

	t.Run("cancel", func(t *testing.T) {
		syncer := newGateSyncer()
		users := &mockUsers{users: []*models.User{linked("alice")}}
		srv := newTestServer(t, &th.MockService{}, users, syncer)

		do(t, srv, http.MethodPost, "/sync", "")
		<-syncer.started
		srv.sync.Cancel()
		srv.Wait()

		status := decode[StatusResponse](t, do(t, srv, http.MethodGet, "/sync/status", ""))
		if status.LastResult == nil || status.LastResult.Status != models.RunStatusCancelled {
			t.Errorf("expected cancelled result, got %+v", status.LastResult)
		}
		if status.LastError == "" {
			t.Error("expected cancellation error")
		}
	})

	t.Run("list failure", func(t *testing.T) {
		users := &mockUsers{listErr: errors.New("database is locked")}
		srv := newTestServer(t, &th.MockService{}, users, newGateSyncer())

		if rec := do(t, srv, http.MethodPost, "/sync", ""); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if status := decode[StatusResponse](t, do(t, srv, http.MethodGet, "/sync/status", "")); status.Syncing {
			t.Error("failed start must release the handler")
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		srv := newTestServer(t, &th.MockService{}, &mockUsers{}, newGateSyncer())
		if rec := do(t, srv, http.MethodGet, "/sync", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &th.MockService{}, &mockUsers{}, newGateSyncer())
	do(t, srv, http.MethodGet, "/sync/status", "")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "lfmx_http_requests_total") {
		t.Error("expected HTTP request metrics to be exported")
	}
}
