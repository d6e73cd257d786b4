package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// ImportStats counts what a catalog import added.
type ImportStats struct {
	Artists       int `json:"artists"`
	Tracks        int `json:"tracks"`
	SkippedTracks int `json:"skipped_tracks"`
}

// CatalogRepository stores the local artists and tracks and serves them to the reconciler.
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new [CatalogRepository] with the given database connection
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// CreateArtist inserts an artist with a generated ID
func (r *CatalogRepository) CreateArtist(ctx context.Context, artist *models.Artist) error {
	if strings.TrimSpace(artist.Name) == "" {
		return fmt.Errorf("%w: artist name is required", shared.ErrInvalidInput)
	}

	artist.ID = shared.GenerateID()
	now := time.Now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO artists (id, name, mbid, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		artist.ID, artist.Name, nullString(artist.MBID), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}
	return nil
}

// CreateTrack inserts a track with a generated ID. The artist must exist.
func (r *CatalogRepository) CreateTrack(ctx context.Context, track *models.Track) error {
	if err := validateTrack(track); err != nil {
		return err
	}

	track.ID = shared.GenerateID()
	if err := insertTrack(ctx, r.db, track); err != nil {
		return err
	}
	return nil
}

// GetArtist retrieves an artist by ID
func (r *CatalogRepository) GetArtist(ctx context.Context, id string) (*models.Artist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, mbid FROM artists WHERE id = ?`, id)

	artist, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, id)
	}
	return artist, err
}

// FindArtist retrieves an artist by ID or by case-insensitive name
func (r *CatalogRepository) FindArtist(ctx context.Context, idOrName string) (*models.Artist, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, mbid FROM artists WHERE id = ? OR name = ? COLLATE NOCASE ORDER BY (id = ?) DESC LIMIT 1`,
		idOrName, idOrName, idOrName,
	)

	artist, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, idOrName)
	}
	return artist, err
}

// ListArtists returns every artist in the catalog ordered by name.
//
// The catalog is shared, so every user sees the same artists.
func (r *CatalogRepository) ListArtists(ctx context.Context, userID string) ([]models.Artist, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, mbid FROM artists ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []models.Artist
	for rows.Next() {
		artist, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, *artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

// ListTracks returns the artist's tracks across all albums, in album order.
func (r *CatalogRepository) ListTracks(ctx context.Context, artistID string) ([]models.Track, error) {
	query := `
		SELECT t.id, t.artist_id, t.name, a.name, t.album, t.disc_number, t.track_number, t.mbid, t.duration
		FROM tracks t
		JOIN artists a ON a.id = t.artist_id
		WHERE t.artist_id = ?
		ORDER BY t.album COLLATE NOCASE, t.disc_number, t.track_number, t.name COLLATE NOCASE
	`

	rows, err := r.db.QueryContext(ctx, query, artistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		var (
			t     models.Track
			album sql.NullString
			mbid  sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.ArtistID, &t.Name, &t.Artist, &album, &t.DiscNumber, &t.TrackNumber, &mbid, &t.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.Album = album.String
		t.MBID = mbid.String
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// Counts returns the number of artists and tracks in the catalog.
func (r *CatalogRepository) Counts(ctx context.Context) (artists, tracks int, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT (SELECT COUNT(*) FROM artists), (SELECT COUNT(*) FROM tracks)`).Scan(&artists, &tracks)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count catalog: %w", err)
	}
	return artists, tracks, nil
}

// Import adds an exported catalog in a single transaction.
//
// Artists are merged by case-insensitive name; a missing MBID is filled in from the export.
// Tracks already present for the artist under the same name and album are skipped.
func (r *CatalogRepository) Import(ctx context.Context, export *models.CatalogExport) (*ImportStats, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stats := &ImportStats{}
	now := time.Now()

	for _, ae := range export.Artists {
		if strings.TrimSpace(ae.Name) == "" {
			return nil, fmt.Errorf("%w: artist name is required", shared.ErrInvalidInput)
		}

		artistID, created, err := upsertArtist(ctx, tx, ae, now)
		if err != nil {
			return nil, err
		}
		if created {
			stats.Artists++
		}

		for _, te := range ae.Tracks {
			track := &models.Track{
				ArtistID:    artistID,
				Name:        te.Name,
				Album:       te.Album,
				DiscNumber:  max(te.DiscNumber, 1),
				TrackNumber: te.TrackNumber,
				MBID:        te.MBID,
				Duration:    te.Duration,
			}
			if err := validateTrack(track); err != nil {
				return nil, fmt.Errorf("artist %s: %w", ae.Name, err)
			}

			var exists int
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM tracks WHERE artist_id = ? AND name = ? COLLATE NOCASE AND IFNULL(album, '') = ? COLLATE NOCASE`,
				artistID, track.Name, track.Album,
			).Scan(&exists)
			if err != nil {
				return nil, fmt.Errorf("failed to check track: %w", err)
			}
			if exists > 0 {
				stats.SkippedTracks++
				continue
			}

			track.ID = shared.GenerateID()
			if err := insertTrack(ctx, tx, track); err != nil {
				return nil, err
			}
			stats.Tracks++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return stats, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTrack(ctx context.Context, db execer, track *models.Track) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO tracks (id, artist_id, name, album, disc_number, track_number, mbid, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		track.ID, track.ArtistID, track.Name, nullString(track.Album), max(track.DiscNumber, 1),
		track.TrackNumber, nullString(track.MBID), track.Duration, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

func upsertArtist(ctx context.Context, tx *sql.Tx, ae models.ArtistExport, now time.Time) (id string, created bool, err error) {
	var mbid sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT id, mbid FROM artists WHERE name = ? COLLATE NOCASE LIMIT 1`, ae.Name).Scan(&id, &mbid)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = shared.GenerateID()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO artists (id, name, mbid, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, ae.Name, nullString(ae.MBID), now, now,
		)
		if err != nil {
			return "", false, fmt.Errorf("failed to insert artist: %w", err)
		}
		return id, true, nil
	case err != nil:
		return "", false, fmt.Errorf("failed to query artist: %w", err)
	}

	if !mbid.Valid && ae.MBID != "" {
		if _, err := tx.ExecContext(ctx, `UPDATE artists SET mbid = ?, updated_at = ? WHERE id = ?`, ae.MBID, now, id); err != nil {
			return "", false, fmt.Errorf("failed to update artist: %w", err)
		}
	}
	return id, false, nil
}

func scanArtist(row rowScanner) (*models.Artist, error) {
	var (
		artist models.Artist
		mbid   sql.NullString
	)
	if err := row.Scan(&artist.ID, &artist.Name, &mbid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}
	artist.MBID = mbid.String
	return &artist, nil
}

func validateTrack(track *models.Track) error {
	if strings.TrimSpace(track.Name) == "" {
		return fmt.Errorf("%w: track name is required", shared.ErrInvalidInput)
	}
	if track.ArtistID == "" {
		return fmt.Errorf("%w: track artist is required", shared.ErrInvalidInput)
	}
	if track.Duration < 0 {
		return fmt.Errorf("%w: negative duration", shared.ErrInvalidInput)
	}
	return nil
}
