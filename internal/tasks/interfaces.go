package tasks

import (
	"context"

	"github.com/desertthunder/lfmx/internal/models"
)

// RemoteAPI is the part of the Last.fm client the reconciler reads from.
//
// services.LastfmService implements it.
type RemoteAPI interface {
	LovedTracks(ctx context.Context, username string, limit int) ([]models.RemoteTrack, models.PageMetadata, error)
	ArtistTracks(ctx context.Context, username, artist string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error)
	LibraryTracks(ctx context.Context, username string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error)
}

// CatalogReader lists the local library.
type CatalogReader interface {
	// ListArtists returns the artists visible to a user, in listing order.
	ListArtists(ctx context.Context, userID string) ([]models.Artist, error)

	// ListTracks returns every track of an artist across all of its albums.
	ListTracks(ctx context.Context, artistID string) ([]models.Track, error)
}

// UserDataStore reads and writes per-user track metadata.
type UserDataStore interface {
	// Get returns the stored record, or a zero record for the pair when none exists.
	Get(ctx context.Context, userID, trackID string) (*models.UserData, error)

	// Put persists the record, replacing any previous one for the pair.
	Put(ctx context.Context, data *models.UserData, reason models.SaveReason) error
}

// RunRecorder persists batch run history.
//
// Optional: a [BatchController] without a recorder only logs.
type RunRecorder interface {
	StartRun(ctx context.Context, trigger string) (*models.SyncRun, error)
	FinishRun(ctx context.Context, run *models.SyncRun) error
}

// UserSyncer reconciles a single user. [Reconciler] is the production implementation.
type UserSyncer interface {
	SyncUser(ctx context.Context, user *models.User, span ProgressSpan, progress chan<- ProgressUpdate) (SyncResult, error)
}
