package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// coldplayFixture is one user with three artists: Coldplay (two pages of history), an artist without an
// MBID and Muse (no history).
func coldplayFixture() (*mockAPI, *mockCatalog) {
	api := &mockAPI{
		loved: []models.RemoteTrack{{Name: "Clocks", MBID: "rec-clocks"}},
		artistPages: map[string][]page{
			"Coldplay": {
				{
					tracks: []models.RemoteTrack{
						remote("clocks", "cp", "rec-clocks"),
						remote("Clocks", "not-coldplay", "rec-other"),
					},
					meta: models.PageMetadata{Page: 1, TotalPages: 2},
				},
				{
					tracks: []models.RemoteTrack{remote("Yellow", "cp", "rec-yellow")},
					meta:   models.PageMetadata{Page: 2, TotalPages: 2},
				},
			},
		},
	}

	catalog := &mockCatalog{
		artists: []models.Artist{
			{ID: "ar-cp", Name: "Coldplay", MBID: "cp"},
			{ID: "ar-unknown", Name: "Unknown Artist"},
			{ID: "ar-muse", Name: "Muse", MBID: "muse"},
		},
		tracks: map[string][]models.Track{
			"ar-cp": {
				{ID: "t-clocks", Name: "Clocks", Artist: "Coldplay"},
				{ID: "t-yellow", Name: "Yellow", Artist: "Coldplay"},
				{ID: "t-fixyou", Name: "Fix You", Artist: "Coldplay"},
			},
			"ar-muse": {{ID: "t-uprising", Name: "Uprising", Artist: "Muse"}},
		},
	}
	return api, catalog
}

func newTestReconciler(api RemoteAPI, catalog CatalogReader, store UserDataStore) *Reconciler {
	return NewReconciler(ReconcilerOpts{API: api, Catalog: catalog, UserData: store})
}

func TestReconciler(t *testing.T) {
	t.Run("SyncUser", func(t *testing.T) {
		api, catalog := coldplayFixture()
		store := newMockStore()
		user := linkedUser("u1", "alice", true)

		res, err := newTestReconciler(api, catalog, store).SyncUser(context.Background(), user, FullSpan, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if res.LocalSongs != 3 || res.RemoteSongs != 2 || res.MatchedSongs != 2 {
			t.Errorf("unexpected counts %+v", res)
		}
		if res.ArtistsSkipped != 1 || res.ArtistErrors != 0 || res.LovedTracks != 1 {
			t.Errorf("unexpected counts %+v", res)
		}
		if res.MatchedSongs > min(res.LocalSongs, res.RemoteSongs) {
			t.Errorf("matched %d exceeds min(local, remote)", res.MatchedSongs)
		}

		if !store.favorite("u1", "t-clocks") {
			t.Error("expected Clocks to be a favorite")
		}
		if store.favorite("u1", "t-yellow") || store.favorite("u1", "t-fixyou") {
			t.Error("expected only Clocks to be a favorite")
		}
		if store.puts != 1 || res.FavoritesUpdated != 1 {
			t.Errorf("expected 1 write, got %d (result %d)", store.puts, res.FavoritesUpdated)
		}
		for _, r := range store.reasons {
			if r != models.SaveReasonUpdateUserRating {
				t.Errorf("unexpected save reason %s", r)
			}
		}

		want := []string{"Coldplay:1", "Coldplay:2", "Muse:1"}
		if got := api.requested(); fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("requests = %v, want %v", got, want)
		}
		if api.lovedCalls != 1 {
			t.Errorf("expected loved tracks fetched once, got %d", api.lovedCalls)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		api, catalog := coldplayFixture()
		store := newMockStore()
		store.data["u1/t-yellow"] = models.UserData{UserID: "u1", TrackID: "t-yellow", IsFavorite: true, PlayCount: 7}
		user := linkedUser("u1", "alice", true)
		r := newTestReconciler(api, catalog, store)

		if _, err := r.SyncUser(context.Background(), user, FullSpan, nil); err != nil {
			t.Fatalf("first run: %v", err)
		}
		first := map[string]bool{}
		for k, v := range store.data {
			first[k] = v.IsFavorite
		}
		if store.data["u1/t-yellow"].IsFavorite {
			t.Error("expected Yellow to be unfavorited")
		}
		if store.data["u1/t-yellow"].PlayCount != 7 {
			t.Error("expected play count to be carried through")
		}
		puts := store.puts

		res, err := r.SyncUser(context.Background(), user, FullSpan, nil)
		if err != nil {
			t.Fatalf("second run: %v", err)
		}
		for k, v := range store.data {
			if first[k] != v.IsFavorite {
				t.Errorf("favorite of %s changed on second run", k)
			}
		}
		if store.puts != puts || res.FavoritesUpdated != 0 {
			t.Errorf("expected no writes on second run, got %d", store.puts-puts)
		}
	})

	t.Run("Favorites disabled", func(t *testing.T) {
		api, catalog := coldplayFixture()
		store := newMockStore()
		user := linkedUser("u1", "alice", false)

		res, err := newTestReconciler(api, catalog, store).SyncUser(context.Background(), user, FullSpan, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if api.lovedCalls != 0 {
			t.Error("loved tracks must not be fetched")
		}
		if store.puts != 0 || len(store.data) != 0 {
			t.Errorf("expected no user data writes, got %d", store.puts)
		}
		if res.MatchedSongs != 2 {
			t.Errorf("expected matching to still run, got %d", res.MatchedSongs)
		}
	})

	t.Run("Foreign artist tracks never match", func(t *testing.T) {
		api := &mockAPI{
			loved: []models.RemoteTrack{{Name: "Track 1"}},
			artistPages: map[string][]page{
				"Coldplay": {
					{tracks: makeTracks(200, "other"), meta: models.PageMetadata{Page: 1, TotalPages: 2}},
					{tracks: makeTracks(200, "other"), meta: models.PageMetadata{Page: 2, TotalPages: 2}},
				},
			},
		}
		catalog := &mockCatalog{
			artists: []models.Artist{{ID: "ar-cp", Name: "Coldplay", MBID: "cp"}},
			tracks:  map[string][]models.Track{"ar-cp": {{ID: "t1", Name: "Track 1"}}},
		}
		store := newMockStore()

		res, err := newTestReconciler(api, catalog, store).SyncUser(context.Background(), linkedUser("u1", "alice", true), FullSpan, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.RemoteSongs != 0 || res.MatchedSongs != 0 || res.LocalSongs != 0 {
			t.Errorf("expected nothing to match, got %+v", res)
		}
		if store.puts != 0 {
			t.Errorf("expected no writes, got %d", store.puts)
		}
	})

	t.Run("Duplicate local names claim one remote track", func(t *testing.T) {
		api := &mockAPI{
			loved:       []models.RemoteTrack{{Name: "Clocks"}},
			artistPages: map[string][]page{"Coldplay": onePage(remote("Clocks", "cp", ""))},
		}
		catalog := &mockCatalog{
			artists: []models.Artist{{ID: "ar-cp", Name: "Coldplay", MBID: "cp"}},
			tracks: map[string][]models.Track{"ar-cp": {
				{ID: "t1", Name: "Clocks"},
				{ID: "t2", Name: "Clocks"},
			}},
		}
		store := newMockStore()

		res, err := newTestReconciler(api, catalog, store).SyncUser(context.Background(), linkedUser("u1", "alice", true), FullSpan, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.LocalSongs != 2 || res.RemoteSongs != 1 || res.MatchedSongs != 1 {
			t.Errorf("unexpected counts %+v", res)
		}
		if res.MatchedSongs > min(res.LocalSongs, res.RemoteSongs) {
			t.Errorf("matched %d exceeds min(local %d, remote %d)", res.MatchedSongs, res.LocalSongs, res.RemoteSongs)
		}
		if !store.favorite("u1", "t1") || !store.favorite("u1", "t2") {
			t.Error("expected both local copies to be favorites")
		}
		if res.FavoritesUpdated != 2 {
			t.Errorf("expected 2 favorites updated, got %d", res.FavoritesUpdated)
		}
	})

	t.Run("Failed user still records counters", func(t *testing.T) {
		api := &mockAPI{
			loved: []models.RemoteTrack{{Name: "A1"}, {Name: "B1"}},
			artistPages: map[string][]page{
				"A": onePage(remote("A1", "a", "")),
				"B": onePage(remote("B1", "b", "")),
			},
		}
		catalog := &mockCatalog{
			artists: []models.Artist{{ID: "a", Name: "A", MBID: "a"}, {ID: "b", Name: "B", MBID: "b"}, {ID: "c", Name: "C", MBID: "c"}},
			tracks: map[string][]models.Track{
				"a": {{ID: "a1", Name: "A1"}},
				"b": {{ID: "b1", Name: "B1"}},
			},
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		catalog.onList = func(artistID string) {
			if artistID == "b" {
				cancel()
			}
		}

		favorites := testutil.ToFloat64(favoritesUpdatedTotal)
		local := testutil.ToFloat64(songsTotal.WithLabelValues("local"))

		res, err := newTestReconciler(api, catalog, newMockStore()).SyncUser(ctx, linkedUser("u1", "alice", true), FullSpan, nil)
		if !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
		if res.FavoritesUpdated != 2 {
			t.Fatalf("expected 2 favorites written before cancellation, got %d", res.FavoritesUpdated)
		}

		if got := testutil.ToFloat64(favoritesUpdatedTotal) - favorites; got != 2 {
			t.Errorf("favorites counter grew by %v, want 2", got)
		}
		if got := testutil.ToFloat64(songsTotal.WithLabelValues("local")) - local; got != 2 {
			t.Errorf("local songs counter grew by %v, want 2", got)
		}
	})

	t.Run("Artist failure is isolated", func(t *testing.T) {
		api := &mockAPI{
			loved: []models.RemoteTrack{{Name: "A1"}, {Name: "B1"}, {Name: "C1"}},
			artistPages: map[string][]page{
				"A": onePage(remote("A1", "a", "")),
				"B": onePage(remote("B1", "b", "")),
				"C": onePage(remote("C1", "c", "")),
			},
			artistErr: map[string]error{"B": fmt.Errorf("%w: status 500", shared.ErrRemote)},
		}
		catalog := &mockCatalog{
			artists: []models.Artist{{ID: "a", Name: "A", MBID: "a"}, {ID: "b", Name: "B", MBID: "b"}, {ID: "c", Name: "C", MBID: "c"}},
			tracks: map[string][]models.Track{
				"a": {{ID: "a1", Name: "A1"}},
				"b": {{ID: "b1", Name: "B1"}},
				"c": {{ID: "c1", Name: "C1"}},
			},
		}
		store := newMockStore()

		res, err := newTestReconciler(api, catalog, store).SyncUser(context.Background(), linkedUser("u1", "alice", true), FullSpan, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.ArtistErrors != 1 {
			t.Errorf("expected 1 artist error, got %d", res.ArtistErrors)
		}
		if !store.favorite("u1", "a1") || !store.favorite("u1", "c1") {
			t.Error("expected A and C favorites to be written")
		}
		if store.favorite("u1", "b1") {
			t.Error("expected B to be untouched")
		}
	})

	t.Run("Cancelled after second artist", func(t *testing.T) {
		api := &mockAPI{artistPages: map[string][]page{}}
		catalog := &mockCatalog{tracks: map[string][]models.Track{}}
		for i := 1; i <= 5; i++ {
			name := fmt.Sprintf("Artist %d", i)
			id := fmt.Sprintf("ar-%d", i)
			track := fmt.Sprintf("Song %d", i)
			api.artistPages[name] = onePage(remote(track, id, ""))
			api.loved = append(api.loved, models.RemoteTrack{Name: track})
			catalog.artists = append(catalog.artists, models.Artist{ID: id, Name: name, MBID: id})
			catalog.tracks[id] = []models.Track{{ID: "t-" + id, Name: track}}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		catalog.onList = func(artistID string) {
			if artistID == "ar-2" {
				cancel()
			}
		}
		store := newMockStore()

		_, err := newTestReconciler(api, catalog, store).SyncUser(ctx, linkedUser("u1", "alice", true), FullSpan, nil)
		if !errors.Is(err, shared.ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}

		var syncErr *SyncError
		if !errors.As(err, &syncErr) {
			t.Fatalf("expected SyncError, got %T", err)
		}
		if syncErr.Artist != "Artist 3" || syncErr.User != "alice" {
			t.Errorf("unexpected error context %+v", syncErr)
		}

		if !store.favorite("u1", "t-ar-1") || !store.favorite("u1", "t-ar-2") {
			t.Error("expected writes from artists 1 and 2 to remain")
		}
		want := []string{"Artist 1:1", "Artist 2:1"}
		if got := api.requested(); fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("requests = %v, want %v", got, want)
		}
	})

	t.Run("Loved tracks failure aborts the user", func(t *testing.T) {
		api, catalog := coldplayFixture()
		api.lovedErr = fmt.Errorf("%w: user not found", shared.ErrRemote)

		_, err := newTestReconciler(api, catalog, newMockStore()).SyncUser(context.Background(), linkedUser("u1", "alice", true), FullSpan, nil)

		var syncErr *SyncError
		if !errors.As(err, &syncErr) || !errors.Is(err, shared.ErrRemote) {
			t.Fatalf("expected SyncError wrapping ErrRemote, got %v", err)
		}
		if IsCancelled(err) {
			t.Error("expected a non-cancellation failure")
		}
		if len(api.requested()) != 0 {
			t.Errorf("expected no artist requests, got %v", api.requested())
		}
	})

	t.Run("Store failure aborts the user", func(t *testing.T) {
		api, catalog := coldplayFixture()
		store := newMockStore()
		store.putErr = errors.New("disk full")

		_, err := newTestReconciler(api, catalog, store).SyncUser(context.Background(), linkedUser("u1", "alice", true), FullSpan, nil)
		var syncErr *SyncError
		if !errors.As(err, &syncErr) || syncErr.Artist != "Coldplay" {
			t.Fatalf("expected SyncError for Coldplay, got %v", err)
		}
	})

	t.Run("Missing session", func(t *testing.T) {
		api, catalog := coldplayFixture()
		user := models.NewUser(1, "bob")

		_, err := newTestReconciler(api, catalog, newMockStore()).SyncUser(context.Background(), user, FullSpan, nil)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Progress covers the user's span", func(t *testing.T) {
		api, catalog := coldplayFixture()
		catalog.artists = catalog.artists[:1]
		progress := make(chan ProgressUpdate, 32)

		span := ProgressSpan{Offset: 0.5, Max: 1}
		if _, err := newTestReconciler(api, catalog, newMockStore()).SyncUser(context.Background(), linkedUser("u1", "alice", true), span, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var percents []float64
		for _, u := range drain(progress) {
			if u.Phase == FetchPages {
				percents = append(percents, u.Percent)
			}
		}
		if len(percents) != 2 {
			t.Fatalf("expected 2 page updates, got %v", percents)
		}
		if math.Abs(percents[0]-75) > 1e-9 || math.Abs(percents[1]-100) > 1e-9 {
			t.Errorf("unexpected percents %v", percents)
		}
	})
}

func TestSyncResult(t *testing.T) {
	res := SyncResult{LocalSongs: 10, RemoteSongs: 4, MatchedSongs: 3}
	if got := res.MatchRate(); got != 30 {
		t.Errorf("MatchRate() = %v, want 30", got)
	}
	if got := res.LegacyMatchRate(); got != 75 {
		t.Errorf("LegacyMatchRate() = %v, want 75", got)
	}
	if got := (SyncResult{}).MatchRate(); got != 0 {
		t.Errorf("MatchRate() of empty result = %v, want 0", got)
	}
}
