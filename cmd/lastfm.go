package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// trackListing is the JSON shape of a fetched listing.
type trackListing struct {
	User   string               `json:"user"`
	Artist string               `json:"artist,omitempty"`
	Page   models.PageMetadata  `json:"page"`
	Pages  int                  `json:"pages_fetched"`
	Tracks []models.RemoteTrack `json:"tracks"`
}

// LastfmLoved prints a user's loved tracks.
func (r *Runner) LastfmLoved(ctx context.Context, cmd *cli.Command) error {
	username := strings.TrimSpace(cmd.StringArg("username"))
	if username == "" {
		return fmt.Errorf("%w: Last.fm username is required", shared.ErrMissingArgument)
	}
	if err := r.requireLastfm(); err != nil {
		return err
	}

	r.logger.Info("fetching loved tracks", "user", username)

	tracks, meta, err := r.lastfm.LovedTracks(ctx, username, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(trackListing{User: username, Page: meta, Pages: 1, Tracks: nonNil(tracks)}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Loved tracks of %s (%d of %d)", username, len(tracks), meta.Total))
	r.printTracks(tracks)
	return nil
}

// LastfmArtistTracks prints a user's scrobbled tracks of one artist.
func (r *Runner) LastfmArtistTracks(ctx context.Context, cmd *cli.Command) error {
	req := tasks.FetchRequest{
		User:   strings.TrimSpace(cmd.StringArg("username")),
		Artist: strings.TrimSpace(cmd.StringArg("artist")),
		Page:   int(cmd.Int("page")),
		Limit:  int(cmd.Int("limit")),
	}
	if req.User == "" || req.Artist == "" {
		return fmt.Errorf("%w: Last.fm username and artist are required", shared.ErrMissingArgument)
	}
	return r.fetchListing(ctx, cmd, req)
}

// LastfmLibrary prints a user's track library.
func (r *Runner) LastfmLibrary(ctx context.Context, cmd *cli.Command) error {
	req := tasks.FetchRequest{
		User:  strings.TrimSpace(cmd.StringArg("username")),
		Page:  int(cmd.Int("page")),
		Limit: int(cmd.Int("limit")),
	}
	if req.User == "" {
		return fmt.Errorf("%w: Last.fm username is required", shared.ErrMissingArgument)
	}
	if req.Limit <= 0 {
		req.Limit = r.config.Sync.LibraryPageSize
	}
	return r.fetchListing(ctx, cmd, req)
}

// fetchListing fetches one page of req, or every page from req.Page on with --all.
func (r *Runner) fetchListing(ctx context.Context, cmd *cli.Command, req tasks.FetchRequest) error {
	if req.Page < 1 || req.Limit < 0 {
		return fmt.Errorf("%w: --page must be at least 1 and --limit not negative", shared.ErrInvalidFlag)
	}
	if err := r.requireLastfm(); err != nil {
		return err
	}

	fetcher := tasks.NewPageFetcher(r.lastfm)
	listing := trackListing{User: req.User, Artist: req.Artist}

	if cmd.Bool("all") {
		r.logger.Info("fetching all pages", "user", req.User, "artist", req.Artist)
		tracks, err := fetcher.Drain(ctx, req, func(meta models.PageMetadata) {
			listing.Page = meta
			listing.Pages++
			r.logger.Debug("fetched page", "page", meta.Page, "total_pages", meta.TotalPages)
		})
		if err != nil {
			return err
		}
		listing.Tracks = tracks
	} else {
		tracks, meta, err := fetcher.FetchPage(ctx, req)
		if err != nil {
			return err
		}
		listing.Tracks, listing.Page, listing.Pages = tracks, meta, 1
	}
	listing.Tracks = nonNil(listing.Tracks)

	if cmd.Bool("json") {
		return r.writeJSON(listing, cmd.Bool("pretty"))
	}

	title := fmt.Sprintf("Library of %s", req.User)
	if req.Artist != "" {
		title = fmt.Sprintf("%s tracks scrobbled by %s", req.Artist, req.User)
	}
	r.writePlainHeader(fmt.Sprintf("%s (page %d/%d, %d total)", title, listing.Page.Page, listing.Page.TotalPages, listing.Page.Total))
	r.printTracks(listing.Tracks)
	return nil
}

func (r *Runner) printTracks(tracks []models.RemoteTrack) {
	if len(tracks) == 0 {
		r.writePlain("No tracks found\n")
		return
	}
	for i, t := range tracks {
		r.writePlain("%d. %s - %s", i+1, t.Artist, t.Name)
		if t.PlayCount > 0 {
			r.writePlain(" (%d plays)", t.PlayCount)
		}
		r.writePlain("\n")
	}
}

// LastfmCall invokes an arbitrary API method, optionally signed with a user's session key.
func (r *Runner) LastfmCall(ctx context.Context, cmd *cli.Command) error {
	method := strings.TrimSpace(cmd.StringArg("method"))
	if method == "" {
		return fmt.Errorf("%w: API method is required", shared.ErrMissingArgument)
	}
	if err := r.requireLastfm(); err != nil {
		return err
	}

	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	var sessionKey string
	if ref := cmd.String("session"); ref != "" {
		user, err := r.findUser(ref)
		if err != nil {
			return err
		}
		if !user.CanSync() {
			return fmt.Errorf("%w: %s has no Last.fm session", shared.ErrNotAuthenticated, user.Name())
		}
		sessionKey = user.Lastfm().SessionKey
	}

	r.logger.Info("calling Last.fm", "method", method, "signed", sessionKey != "")

	resp, err := r.lastfm.Call(ctx, method, params, sessionKey)
	if err != nil {
		return err
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, cmd.Bool("pretty"))
	}
	r.output.Write(resp.Body)
	r.output.Write([]byte("\n"))
	return nil
}

// LastfmLove returns the action of "lastfm love" or "lastfm unlove".
//
// Pushing loved state while a sync runs could race the favorites being written, so it is refused then.
func (r *Runner) LastfmLove(love bool) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		artist := strings.TrimSpace(cmd.StringArg("artist"))
		track := strings.TrimSpace(cmd.StringArg("track"))
		if artist == "" || track == "" {
			return fmt.Errorf("%w: artist and track are required", shared.ErrMissingArgument)
		}
		ref := strings.TrimSpace(cmd.String("user"))
		if ref == "" {
			return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
		}
		if err := r.requireLastfm(); err != nil {
			return err
		}
		if r.flag.Syncing() {
			return fmt.Errorf("%w: try again when the sync has finished", shared.ErrSyncInProgress)
		}

		user, err := r.findUser(ref)
		if err != nil {
			return err
		}
		if !user.CanSync() {
			return fmt.Errorf("%w: %s has no Last.fm session", shared.ErrNotAuthenticated, user.Name())
		}

		if err := r.lastfm.LoveTrack(ctx, user.Lastfm().SessionKey, artist, track, love); err != nil {
			return err
		}

		verb := "Loved"
		if !love {
			verb = "Unloved"
		}
		r.writePlain("✓ %s %s - %s as %s\n", verb, artist, track, user.Lastfm().Username)
		return nil
	}
}

// parseParams splits key=value pairs.
func parseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: parameter %q must be key=value", shared.ErrInvalidArgument, p)
		}
		params[key] = value
	}
	return params, nil
}

func nonNil(tracks []models.RemoteTrack) []models.RemoteTrack {
	if tracks == nil {
		return []models.RemoteTrack{}
	}
	return tracks
}
