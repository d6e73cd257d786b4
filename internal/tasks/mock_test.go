package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/lfmx/internal/models"
)

type page struct {
	tracks []models.RemoteTrack
	meta   models.PageMetadata
}

type mockAPI struct {
	mu          sync.Mutex
	loved       []models.RemoteTrack
	lovedErr    error
	lovedMeta   *models.PageMetadata // overrides the single-page metadata of loved
	lovedCalls  int
	artistPages map[string][]page
	artistErr   map[string]error
	library     []page
	requests    []string // "artist:page" in request order
	onRequest   func(artist string, page int)
}

func (m *mockAPI) LovedTracks(ctx context.Context, username string, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	m.mu.Lock()
	m.lovedCalls++
	m.mu.Unlock()

	if m.lovedErr != nil {
		return nil, models.PageMetadata{}, m.lovedErr
	}
	if m.lovedMeta != nil {
		return m.loved, *m.lovedMeta, nil
	}
	return m.loved, models.PageMetadata{Page: 1, TotalPages: 1, Total: len(m.loved)}, nil
}

func (m *mockAPI) ArtistTracks(ctx context.Context, username, artist string, pageNum, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	m.mu.Lock()
	m.requests = append(m.requests, fmt.Sprintf("%s:%d", artist, pageNum))
	hook := m.onRequest
	m.mu.Unlock()

	if hook != nil {
		hook(artist, pageNum)
	}
	if err := m.artistErr[artist]; err != nil {
		return nil, models.PageMetadata{}, err
	}
	return pageAt(m.artistPages[artist], pageNum)
}

func (m *mockAPI) LibraryTracks(ctx context.Context, username string, pageNum, limit int) ([]models.RemoteTrack, models.PageMetadata, error) {
	m.mu.Lock()
	m.requests = append(m.requests, fmt.Sprintf(":%d", pageNum))
	m.mu.Unlock()

	return pageAt(m.library, pageNum)
}

func (m *mockAPI) requested() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

func pageAt(pages []page, n int) ([]models.RemoteTrack, models.PageMetadata, error) {
	if n < 1 || n > len(pages) {
		return nil, models.PageMetadata{Page: n, TotalPages: len(pages)}, nil
	}
	p := pages[n-1]
	return p.tracks, p.meta, nil
}

type mockCatalog struct {
	artists   []models.Artist
	tracks    map[string][]models.Track
	artistErr error
	onList    func(artistID string)
}

func (m *mockCatalog) ListArtists(ctx context.Context, userID string) ([]models.Artist, error) {
	if m.artistErr != nil {
		return nil, m.artistErr
	}
	return m.artists, nil
}

func (m *mockCatalog) ListTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	if m.onList != nil {
		m.onList(artistID)
	}
	return m.tracks[artistID], nil
}

type mockStore struct {
	mu      sync.Mutex
	data    map[string]models.UserData
	puts    int
	reasons []models.SaveReason
	putErr  error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]models.UserData)}
}

func (m *mockStore) Get(ctx context.Context, userID, trackID string) (*models.UserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.data[userID+"/"+trackID]; ok {
		return &d, nil
	}
	return models.NewUserData(userID, trackID), nil
}

func (m *mockStore) Put(ctx context.Context, data *models.UserData, reason models.SaveReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.reasons = append(m.reasons, reason)
	m.data[data.UserID+"/"+data.TrackID] = *data
	return nil
}

func (m *mockStore) favorite(userID, trackID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[userID+"/"+trackID].IsFavorite
}

type mockRecorder struct {
	started  []*models.SyncRun
	finished []*models.SyncRun
}

func (m *mockRecorder) StartRun(ctx context.Context, trigger string) (*models.SyncRun, error) {
	run := models.NewSyncRun(len(m.started)+1, trigger)
	run.SetID(fmt.Sprintf("run-%d", len(m.started)+1))
	m.started = append(m.started, run)
	return run, nil
}

func (m *mockRecorder) FinishRun(ctx context.Context, run *models.SyncRun) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.finished = append(m.finished, run)
	return nil
}

// mockSyncer replays canned per-user outcomes.
type mockSyncer struct {
	results map[string]SyncResult
	errs    map[string]error
	spans   []ProgressSpan
	synced  []string
	flag    *SyncFlag
	during  []bool // flag state observed during each call
}

func (m *mockSyncer) SyncUser(ctx context.Context, user *models.User, span ProgressSpan, progress chan<- ProgressUpdate) (SyncResult, error) {
	m.spans = append(m.spans, span)
	m.synced = append(m.synced, user.Name())
	if m.flag != nil {
		m.during = append(m.during, m.flag.Syncing())
	}
	return m.results[user.Name()], m.errs[user.Name()]
}

func linkedUser(id, name string, favorites bool) *models.User {
	u := models.NewUser(1, name)
	u.SetID(id)
	u.Link(models.RemoteUser{Username: name, SessionKey: "sk-" + name, Options: models.SyncOptions{SyncFavorites: favorites}})
	return u
}

func remote(name, artistMBID, mbid string) models.RemoteTrack {
	return models.RemoteTrack{Name: name, ArtistMBID: artistMBID, MBID: mbid}
}

func onePage(tracks ...models.RemoteTrack) []page {
	return []page{{tracks: tracks, meta: models.PageMetadata{Page: 1, TotalPages: 1, Total: len(tracks)}}}
}

func drain(ch chan ProgressUpdate) []ProgressUpdate {
	close(ch)
	var updates []ProgressUpdate
	for u := range ch {
		updates = append(updates, u)
	}
	return updates
}
