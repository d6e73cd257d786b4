package tasks

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// SyncError is an unrecoverable failure of one user's sync.
type SyncError struct {
	User   string
	Artist string // empty when the failure is not tied to an artist
	Err    error
}

func (e *SyncError) Error() string {
	if e.Artist != "" {
		return fmt.Sprintf("sync %s: artist %s: %v", e.User, e.Artist, e.Err)
	}
	return fmt.Sprintf("sync %s: %v", e.User, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// IsCancelled reports whether err stems from a cancelled sync.
func IsCancelled(err error) bool {
	return errors.Is(err, shared.ErrCancelled)
}

// SyncResult holds the counters of one user's sync.
type SyncResult struct {
	User             string        `json:"user"`
	LocalSongs       int           `json:"local_songs"`
	RemoteSongs      int           `json:"remote_songs"`
	MatchedSongs     int           `json:"matched_songs"`
	FavoritesUpdated int           `json:"favorites_updated"`
	LovedTracks      int           `json:"loved_tracks"`
	ArtistsSkipped   int           `json:"artists_skipped"`
	ArtistErrors     int           `json:"artist_errors"`
	Duration         time.Duration `json:"duration"`
}

// MatchRate is the percentage of visited local songs that found a remote match.
func (r SyncResult) MatchRate() float64 {
	return rate(r.MatchedSongs, r.LocalSongs)
}

// LegacyMatchRate divides by the smaller of the local and remote counts.
func (r SyncResult) LegacyMatchRate() float64 {
	return rate(r.MatchedSongs, min(r.LocalSongs, r.RemoteSongs))
}

// UserResult is the outcome for one user of a batch.
type UserResult struct {
	User   string     `json:"user"`
	Result SyncResult `json:"result"`
	Err    error      `json:"-"`
}

// Error returns the failure message, or "".
func (r UserResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// BatchResult holds the outcome of a batch run.
type BatchResult struct {
	RunID       string       `json:"run_id,omitempty"`
	Status      string       `json:"status"`
	Trigger     string       `json:"trigger"`
	Eligible    int          `json:"eligible"`
	Users       []UserResult `json:"users"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Counts aggregates the per-user results.
func (b *BatchResult) Counts() models.SyncCounts {
	counts := models.SyncCounts{UsersTotal: b.Eligible}
	for _, u := range b.Users {
		if u.Err != nil {
			counts.UsersFailed++
		} else {
			counts.UsersSynced++
		}
		counts.LocalSongs += u.Result.LocalSongs
		counts.RemoteSongs += u.Result.RemoteSongs
		counts.MatchedSongs += u.Result.MatchedSongs
		counts.FavoritesUpdated += u.Result.FavoritesUpdated
	}
	return counts
}

// MatchRate is matched over local songs across the batch, as a percentage.
func (b *BatchResult) MatchRate() float64 {
	c := b.Counts()
	return rate(c.MatchedSongs, c.LocalSongs)
}

// Duration returns the wall time of the run.
func (b *BatchResult) Duration() time.Duration {
	if b.CompletedAt.IsZero() {
		return 0
	}
	return b.CompletedAt.Sub(b.StartedAt)
}

func rate(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 10
}
