// package services defines interface Service for interacting with the Last.fm web API
package services

import (
	"context"

	"github.com/desertthunder/lfmx/internal/models"
)

// Service defines the Last.fm operations used by the importer, the CLI and the HTTP server.
type Service interface {
	// LovedTracks retrieves up to limit loved tracks of a user in one request.
	LovedTracks(ctx context.Context, username string, limit int) ([]models.RemoteTrack, models.PageMetadata, error)

	// ArtistTracks retrieves one page of a user's scrobbles for an artist.
	// Pages are 1-based.
	ArtistTracks(ctx context.Context, username, artist string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error)

	// LibraryTracks retrieves one page of a user's track library.
	LibraryTracks(ctx context.Context, username string, page, limit int) ([]models.RemoteTrack, models.PageMetadata, error)

	// MobileSession exchanges credentials for a session key.
	MobileSession(ctx context.Context, username, password string) (*LastfmSession, error)

	// LoveTrack loves (love=true) or unloves a track on behalf of the session's user.
	LoveTrack(ctx context.Context, sessionKey, artist, track string, love bool) error

	// Call invokes any API method and returns the raw response.
	Call(ctx context.Context, method string, params map[string]string, sessionKey string) (*APIResponse, error)

	// Name returns the name of the service
	Name() string
}

var _ Service = (*LastfmService)(nil)
