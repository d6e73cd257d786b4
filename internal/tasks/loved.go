package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
)

// LovedIndex answers "is this track loved" for one user during one sync.
type LovedIndex struct {
	entries []models.RemoteTrack
	mbids   map[string]struct{}
	names   map[string]struct{} // normalized names of every entry
	unkeyed []string            // names of entries without an MBID
	like    NamePredicate
}

// BuildLovedIndex fetches the user's loved tracks in a single unauthenticated request.
//
// A failed fetch is an error; a user without loved tracks yields an empty index. A loved list longer than
// limit is an error too, since a partial index would clear the favorite flag of loved tracks it left out.
func BuildLovedIndex(ctx context.Context, api RemoteAPI, username string, limit int) (*LovedIndex, error) {
	if limit <= 0 {
		limit = DefaultLovedLimit
	}

	tracks, meta, err := api.LovedTracks(ctx, username, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, fmt.Errorf("loved tracks for %s: %w", username, err)
	}
	if meta.TotalPages > 1 || meta.Total > len(tracks) {
		return nil, fmt.Errorf("%w: loved tracks for %s truncated at %d of %d, raise sync.loved_limit",
			shared.ErrRemote, username, len(tracks), meta.Total)
	}
	return NewLovedIndex(tracks), nil
}

// NewLovedIndex indexes an already fetched loved list.
func NewLovedIndex(loved []models.RemoteTrack) *LovedIndex {
	idx := &LovedIndex{
		entries: loved,
		mbids:   make(map[string]struct{}),
		names:   make(map[string]struct{}),
		like:    shared.IsLike,
	}

	for _, t := range loved {
		idx.names[shared.NormalizeName(t.Name)] = struct{}{}
		if t.MBID != "" {
			idx.mbids[t.MBID] = struct{}{}
		} else {
			idx.unkeyed = append(idx.unkeyed, t.Name)
		}
	}
	return idx
}

// Len returns the number of loved entries.
func (idx *LovedIndex) Len() int { return len(idx.entries) }

// IsLoved reports whether the matched remote track is among the loved entries.
//
// With an MBID on the track and at least one MBID in the index, MBIDs decide for keyed entries and
// names only for unkeyed ones. Otherwise every entry is compared by name.
func (idx *LovedIndex) IsLoved(track models.RemoteTrack) bool {
	if idx == nil || len(idx.entries) == 0 {
		return false
	}

	if track.MBID != "" && len(idx.mbids) > 0 {
		if _, ok := idx.mbids[track.MBID]; ok {
			return true
		}
		return idx.anyLike(track.Name, idx.unkeyed)
	}

	if _, ok := idx.names[shared.NormalizeName(track.Name)]; ok {
		return true
	}
	for _, t := range idx.entries {
		if idx.like(t.Name, track.Name) {
			return true
		}
	}
	return false
}

func (idx *LovedIndex) anyLike(name string, candidates []string) bool {
	for _, c := range candidates {
		if idx.like(c, name) {
			return true
		}
	}
	return false
}
