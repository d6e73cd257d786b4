package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// UserDataRepository stores per-user track metadata keyed by (user, track).
type UserDataRepository struct {
	db *sql.DB
}

// NewUserDataRepository creates a new [UserDataRepository] with the given database connection
func NewUserDataRepository(db *sql.DB) *UserDataRepository {
	return &UserDataRepository{db: db}
}

// Get returns the stored record for the pair, or a zero record when the pair was never written.
func (r *UserDataRepository) Get(ctx context.Context, userID, trackID string) (*models.UserData, error) {
	query := `
		SELECT user_id, track_id, is_favorite, play_count, played, last_played_at, rating, updated_at
		FROM user_data
		WHERE user_id = ? AND track_id = ?
	`

	data, err := scanUserData(r.db.QueryRowContext(ctx, query, userID, trackID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewUserData(userID, trackID), nil
	}
	return data, err
}

// Put inserts or replaces the record for the pair and stamps its update time.
func (r *UserDataRepository) Put(ctx context.Context, data *models.UserData, reason models.SaveReason) error {
	if data.UserID == "" || data.TrackID == "" {
		return fmt.Errorf("%w: user data needs a user and a track", shared.ErrInvalidInput)
	}
	if reason == "" {
		return fmt.Errorf("%w: save reason is required", shared.ErrInvalidInput)
	}

	data.UpdatedAt = time.Now()

	query := `
		INSERT INTO user_data (user_id, track_id, is_favorite, play_count, played, last_played_at, rating, save_reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, track_id) DO UPDATE SET
			is_favorite = excluded.is_favorite,
			play_count = excluded.play_count,
			played = excluded.played,
			last_played_at = excluded.last_played_at,
			rating = excluded.rating,
			save_reason = excluded.save_reason,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		data.UserID, data.TrackID, data.IsFavorite, data.PlayCount, data.Played,
		data.LastPlayedAt, data.Rating, string(reason), data.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user data: %w", err)
	}
	return nil
}

// FavoriteTrack is a favorite with its catalog names, for listings.
type FavoriteTrack struct {
	Track     models.Track `json:"track"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ListFavorites returns the user's favorite tracks ordered by artist and name.
func (r *UserDataRepository) ListFavorites(ctx context.Context, userID string) ([]FavoriteTrack, error) {
	query := `
		SELECT t.id, t.artist_id, t.name, a.name, t.album, t.mbid, t.duration, d.updated_at
		FROM user_data d
		JOIN tracks t ON t.id = d.track_id
		JOIN artists a ON a.id = t.artist_id
		WHERE d.user_id = ? AND d.is_favorite = 1
		ORDER BY a.name COLLATE NOCASE, t.name COLLATE NOCASE
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var favorites []FavoriteTrack
	for rows.Next() {
		var (
			f     FavoriteTrack
			album sql.NullString
			mbid  sql.NullString
		)
		err := rows.Scan(&f.Track.ID, &f.Track.ArtistID, &f.Track.Name, &f.Track.Artist, &album, &mbid, &f.Track.Duration, &f.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		f.Track.Album = album.String
		f.Track.MBID = mbid.String
		favorites = append(favorites, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return favorites, nil
}

func scanUserData(row rowScanner) (*models.UserData, error) {
	var (
		data         models.UserData
		lastPlayedAt sql.NullTime
		rating       sql.NullFloat64
	)

	err := row.Scan(&data.UserID, &data.TrackID, &data.IsFavorite, &data.PlayCount, &data.Played, &lastPlayedAt, &rating, &data.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user data: %w", err)
	}

	if lastPlayedAt.Valid {
		data.LastPlayedAt = &lastPlayedAt.Time
	}
	if rating.Valid {
		data.Rating = &rating.Float64
	}
	return &data, nil
}
