// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/services"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
)

// MockService is a test double for [services.Service].
//
// ArtistPages are served by (artist, page); a missing page returns an empty page.
// Sessions maps "username:password" to a session key; other credentials fail with [shared.ErrAuthFailed].
type MockService struct {
	mu          sync.Mutex
	Loved       []models.RemoteTrack
	ArtistPages map[string][][]models.RemoteTrack
	Library     [][]models.RemoteTrack
	Sessions    map[string]string
	Err         error
	Calls       []string
}

func (m *MockService) record(call string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
	return m.Err
}

// CallCount returns how many calls the mock has served.
func (m *MockService) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockService) LovedTracks(ctx context.Context, username string, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	if err := m.record("loved:" + username); err != nil {
		return nil, models.PageMetadata{}, err
	}
	return m.Loved, models.PageMetadata{Page: 1, PerPage: limit, TotalPages: 1, Total: len(m.Loved)}, nil
}

func (m *MockService) ArtistTracks(ctx context.Context, username, artist string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	if err := m.record("artist:" + artist); err != nil {
		return nil, models.PageMetadata{}, err
	}
	return servePage(m.ArtistPages[artist], page, limit)
}

func (m *MockService) LibraryTracks(ctx context.Context, username string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	if err := m.record("library:" + username); err != nil {
		return nil, models.PageMetadata{}, err
	}
	return servePage(m.Library, page, limit)
}

func (m *MockService) MobileSession(ctx context.Context, username, password string) (*services.LastfmSession, error) {
	if err := m.record("session:" + username); err != nil {
		return nil, err
	}
	key, ok := m.Sessions[username+":"+password]
	if !ok {
		return nil, fmt.Errorf("%w: invalid credentials", shared.ErrAuthFailed)
	}
	return &services.LastfmSession{Name: username, Key: key}, nil
}

// LoveTrack records "love:Artist - Track" or "unlove:Artist - Track" and updates Loved.
func (m *MockService) LoveTrack(ctx context.Context, sessionKey, artist, track string, love bool) error {
	call := "unlove:"
	if love {
		call = "love:"
	}
	if err := m.record(call + artist + " - " + track); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.Loved[:0:0]
	for _, t := range m.Loved {
		if t.Artist != artist || t.Name != track {
			kept = append(kept, t)
		}
	}
	if love {
		kept = append(kept, models.RemoteTrack{Name: track, Artist: artist})
	}
	m.Loved = kept
	return nil
}

func (m *MockService) Call(ctx context.Context, method string, params map[string]string, sessionKey string) (*services.APIResponse, error) {
	if err := m.record("call:" + method); err != nil {
		return nil, err
	}
	return &services.APIResponse{StatusCode: http.StatusOK, Body: []byte(`{}`), IsJSON: true, JSONData: map[string]any{}}, nil
}

func (m *MockService) Name() string { return "mock" }

func servePage(pages [][]models.RemoteTrack, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	meta := models.PageMetadata{Page: page, PerPage: limit, TotalPages: len(pages)}
	for _, p := range pages {
		meta.Total += len(p)
	}
	if page < 1 || page > len(pages) {
		return nil, meta, nil
	}
	return pages[page-1], meta, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// BatchResult returns a finished two-user batch: alice synced, bob failed.
func BatchResult() *tasks.BatchResult {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &tasks.BatchResult{
		RunID:    "3f2c9a7e-1b44-4d1e-9a0c-6b1f0d2e8c55",
		Status:   models.RunStatusCompleted,
		Trigger:  models.TriggerCLI,
		Eligible: 2,
		Users: []tasks.UserResult{
			{User: "alice", Result: tasks.SyncResult{
				User: "alice", LocalSongs: 10, RemoteSongs: 8, MatchedSongs: 6, FavoritesUpdated: 2, LovedTracks: 3,
			}},
			{User: "bob", Err: errors.New("sync bob: remote: service unavailable")},
		},
		StartedAt:   started,
		CompletedAt: started.Add(1500 * time.Millisecond),
	}
}
