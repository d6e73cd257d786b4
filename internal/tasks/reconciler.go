package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// ReconcilerOpts contains the collaborators of a [Reconciler].
type ReconcilerOpts struct {
	API            RemoteAPI
	Catalog        CatalogReader
	UserData       UserDataStore
	Matcher        *Matcher // defaults to NewMatcher(nil)
	ArtistPageSize int      // default: DefaultArtistPageSize
	LovedLimit     int      // default: DefaultLovedLimit
	Logger         *log.Logger
}

// Reconciler syncs one user's Last.fm history into the local user data.
type Reconciler struct {
	fetcher        *PageFetcher
	api            RemoteAPI
	catalog        CatalogReader
	userData       UserDataStore
	matcher        *Matcher
	artistPageSize int
	lovedLimit     int
	logger         *log.Logger
}

// NewReconciler creates a [Reconciler].
func NewReconciler(opts ReconcilerOpts) *Reconciler {
	if opts.Matcher == nil {
		opts.Matcher = NewMatcher(nil)
	}
	if opts.ArtistPageSize <= 0 {
		opts.ArtistPageSize = DefaultArtistPageSize
	}
	if opts.LovedLimit <= 0 {
		opts.LovedLimit = DefaultLovedLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Reconciler{
		fetcher:        NewPageFetcher(opts.API),
		api:            opts.API,
		catalog:        opts.Catalog,
		userData:       opts.UserData,
		matcher:        opts.Matcher,
		artistPageSize: opts.ArtistPageSize,
		lovedLimit:     opts.LovedLimit,
		logger:         opts.Logger,
	}
}

// SyncUser walks the user's local artists, matches their tracks against the Last.fm artist history and
// writes the favorite flag of every matched track.
//
// Remote failures for one artist are logged and counted. The returned error is a [*SyncError] and means the
// user's sync stopped: the loved list could not be fetched, the catalog or user data store failed, or ctx was
// cancelled. Writes made before the error are kept.
func (r *Reconciler) SyncUser(ctx context.Context, user *models.User, span ProgressSpan, progress chan<- ProgressUpdate) (SyncResult, error) {
	start := time.Now()
	result := SyncResult{User: user.Name()}
	fail := func(artist string, err error) (SyncResult, error) {
		result.Duration = time.Since(start)
		recordUserResult(result)
		return result, &SyncError{User: user.Name(), Artist: artist, Err: err}
	}

	account := user.Lastfm()
	if account == nil || !account.HasSession() {
		return fail("", fmt.Errorf("%w: no Last.fm session", shared.ErrNotAuthenticated))
	}

	logger := shared.WithLogger(r.logger, "user", user.Name(), "lastfm", account.Username)
	syncFavorites := account.Options.SyncFavorites

	var loved *LovedIndex
	if syncFavorites {
		sendProgress(progress, fetchLovedUpdate(span, account.Username))

		idx, err := BuildLovedIndex(ctx, r.api, account.Username, r.lovedLimit)
		if err != nil {
			return fail("", err)
		}
		loved = idx
		result.LovedTracks = idx.Len()
		logger.Debug("loved tracks indexed", "count", idx.Len())
	}

	artists, err := r.catalog.ListArtists(ctx, user.ID())
	if err != nil {
		return fail("", fmt.Errorf("list artists: %w", err))
	}
	sendProgress(progress, listArtistsUpdate(span, len(artists)))

	for i, artist := range artists {
		if ctx.Err() != nil {
			return fail(artist.Name, cancelled(ctx))
		}

		if !artist.HasMBID() {
			result.ArtistsSkipped++
			logger.Debug("skipping artist without MusicBrainz id", "artist", artist.Name)
			continue
		}

		alog := shared.WithLogger(logger, "artist", artist.Name)

		fetched, err := r.fetcher.Drain(ctx, FetchRequest{
			User:   account.Username,
			Artist: artist.Name,
			Limit:  r.artistPageSize,
		}, func(meta models.PageMetadata) {
			sendProgress(progress, fetchPageUpdate(i+1, len(artists), span, artist, meta))
		})
		if err != nil {
			if ctx.Err() != nil {
				return fail(artist.Name, cancelled(ctx))
			}
			if IsCancelled(err) {
				return fail(artist.Name, err)
			}
			result.ArtistErrors++
			artistErrorsTotal.Inc()
			alog.Warn("failed to fetch artist tracks, skipping", "error", err)
			continue
		}

		candidates := filterByArtist(fetched, artist.MBID)
		result.RemoteSongs += len(candidates)
		if dropped := len(fetched) - len(candidates); dropped > 0 {
			alog.Debug("dropped tracks credited to another artist", "count", dropped)
		}
		if len(candidates) == 0 {
			alog.Info("no tracks in Last.fm library")
			continue
		}
		alog.Info("found tracks in Last.fm library", "count", len(candidates))

		tracks, err := r.catalog.ListTracks(ctx, artist.ID)
		if err != nil {
			return fail(artist.Name, fmt.Errorf("list tracks: %w", err))
		}

		// A remote row is counted once even when several local tracks match it.
		claimed := make(map[*models.RemoteTrack]struct{}, len(candidates))
		for _, track := range tracks {
			result.LocalSongs++

			match := r.matcher.Match(track, candidates)
			if match == nil {
				continue
			}
			if _, ok := claimed[match]; !ok {
				claimed[match] = struct{}{}
				result.MatchedSongs++
			}
			alog.Debug("found match", "track", track.Name, "remote", match.Name)

			if !syncFavorites {
				continue
			}

			updated, err := r.applyFavorite(ctx, user.ID(), track, loved.IsLoved(*match))
			if err != nil {
				if ctx.Err() != nil {
					return fail(artist.Name, cancelled(ctx))
				}
				return fail(artist.Name, err)
			}
			if updated {
				result.FavoritesUpdated++
			}
		}
	}

	result.Duration = time.Since(start)
	recordUserResult(result)

	logger.Info("finished Last.fm import",
		"local", result.LocalSongs,
		"remote", result.RemoteSongs,
		"matched", result.MatchedSongs,
		"favorites", result.FavoritesUpdated,
		"match_rate", fmt.Sprintf("%.1f%%", result.MatchRate()),
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// applyFavorite stores the favorite flag of a matched track. It reports false when the stored flag already matches.
func (r *Reconciler) applyFavorite(ctx context.Context, userID string, track models.Track, loved bool) (bool, error) {
	data, err := r.userData.Get(ctx, userID, track.ID)
	if err != nil {
		return false, fmt.Errorf("read user data for %s: %w", track.Name, err)
	}
	if data.IsFavorite == loved {
		return false, nil
	}

	data.IsFavorite = loved
	if err := r.userData.Put(ctx, data, models.SaveReasonUpdateUserRating); err != nil {
		return false, fmt.Errorf("save user data for %s: %w", track.Name, err)
	}
	return true, nil
}
