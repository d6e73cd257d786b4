package tasks

import (
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// NamePredicate decides whether two track names refer to the same recording.
type NamePredicate func(a, b string) bool

// Matcher pairs a local track with one of its artist's remote tracks.
type Matcher struct {
	like NamePredicate
}

// NewMatcher creates a matcher. A nil predicate uses [shared.IsLike].
func NewMatcher(like NamePredicate) *Matcher {
	if like == nil {
		like = shared.IsLike
	}
	return &Matcher{like: like}
}

// Match returns the first candidate, in the given order, that refers to the local track, or nil.
//
// When the local track has an MBID, a candidate with the same MBID is preferred. Candidates must already be
// restricted to the local track's artist.
func (m *Matcher) Match(local models.Track, candidates []models.RemoteTrack) *models.RemoteTrack {
	if local.MBID != "" {
		for i := range candidates {
			if candidates[i].MBID == local.MBID {
				return &candidates[i]
			}
		}
	}

	for i := range candidates {
		if m.like(local.Name, candidates[i].Name) {
			return &candidates[i]
		}
	}
	return nil
}

// filterByArtist keeps the tracks credited to the artist MBID. The input is not modified.
func filterByArtist(tracks []models.RemoteTrack, artistMBID string) []models.RemoteTrack {
	kept := make([]models.RemoteTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.ArtistMBID == artistMBID {
			kept = append(kept, t)
		}
	}
	return kept
}
