package models

// RemoteTrack is a track as reported by Last.fm for a user.
//
// Loved tracks use the same shape; PlayCount is zero for them.
type RemoteTrack struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	ArtistMBID string `json:"artist_mbid,omitempty"`
	MBID       string `json:"mbid,omitempty"`
	PlayCount  int    `json:"play_count,omitempty"`
	URL        string `json:"url,omitempty"`
}

// PageMetadata describes one page of a paginated Last.fm listing. Pages are 1-based.
type PageMetadata struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalPages int `json:"total_pages"`
	Total      int `json:"total"`
}

// IsLastPage reports whether no further pages should be requested.
func (p PageMetadata) IsLastPage() bool {
	return p.Page >= p.TotalPages
}
