package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/urfave/cli/v3"
)

// CatalogImport loads artists and tracks from a JSON export into the catalog.
//
// Tracks already present (same artist, album, name) are skipped, so the import can be repeated.
func (r *Runner) CatalogImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: catalog file is required", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}

	var export models.CatalogExport
	if err := shared.ReadJSONFile(path, &export); err != nil {
		return err
	}
	if len(export.Artists) == 0 {
		return fmt.Errorf("%w: %s contains no artists", shared.ErrInvalidInput, path)
	}

	r.logger.Info("importing catalog", "file", path, "artists", len(export.Artists))

	stats, err := r.catalog.Import(ctx, &export)
	if err != nil {
		return fmt.Errorf("failed to import catalog: %w", err)
	}

	r.logger.Info("catalog imported", "artists", stats.Artists, "tracks", stats.Tracks, "skipped", stats.SkippedTracks)

	if cmd.Bool("json") {
		return r.writeJSON(stats, false)
	}
	return r.writePlain("✓ Imported %d artists, %d tracks (%d already present)\n", stats.Artists, stats.Tracks, stats.SkippedTracks)
}

// CatalogArtists lists every artist in the catalog.
func (r *Runner) CatalogArtists(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	artists, err := r.catalog.ListArtists(ctx, "")
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if artists == nil {
			artists = []models.Artist{}
		}
		return r.writeJSON(artists, cmd.Bool("pretty"))
	}

	if len(artists) == 0 {
		return r.writePlain("Catalog is empty, run `lfmx catalog import <file>` first\n")
	}

	_, tracks, err := r.catalog.Counts(ctx)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Artists (%d, %d tracks)", len(artists), tracks))
	for i, a := range artists {
		if a.HasMBID() {
			r.writePlain("%d. %s\n", i+1, a.Name)
		} else {
			r.writePlain("%d. %s (no MusicBrainz id, skipped by sync)\n", i+1, a.Name)
		}
	}
	return nil
}

// CatalogTracks lists the tracks of one artist in album order.
func (r *Runner) CatalogTracks(ctx context.Context, cmd *cli.Command) error {
	ref := strings.TrimSpace(cmd.StringArg("artist"))
	if ref == "" {
		return fmt.Errorf("%w: artist name or ID is required", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}

	artist, err := r.catalog.FindArtist(ctx, ref)
	if err != nil {
		return err
	}

	tracks, err := r.catalog.ListTracks(ctx, artist.ID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if tracks == nil {
			tracks = []models.Track{}
		}
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%d tracks)", artist.Name, len(tracks)))
	album := "\x00"
	for _, t := range tracks {
		if t.Album != album {
			album = t.Album
			if album == "" {
				r.writePlainln("(no album)")
			} else {
				r.writePlainln("%s", album)
			}
		}
		r.writePlain("  %2d. %s", t.TrackNumber, t.Name)
		if t.Duration > 0 {
			r.writePlain(" (%s)", t.DurationString())
		}
		r.writePlain("\n")
	}
	return nil
}
