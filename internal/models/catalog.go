package models

import (
	"fmt"
	"time"
)

// Artist is an artist in the local catalog.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	MBID string `json:"mbid,omitempty"` // MusicBrainz artist id
}

// HasMBID reports whether the artist carries a MusicBrainz id.
func (a Artist) HasMBID() bool { return a.MBID != "" }

// Track is an audio item in the local catalog.
type Track struct {
	ID          string `json:"id"`
	ArtistID    string `json:"artist_id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	MBID        string `json:"mbid,omitempty"` // MusicBrainz recording id
	Duration    int    `json:"duration,omitempty"`
}

// DurationString formats the duration as m:ss.
func (t Track) DurationString() string {
	d := time.Duration(t.Duration) * time.Second
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// CatalogExport is the on-disk format accepted by the catalog import command.
type CatalogExport struct {
	Artists []ArtistExport `json:"artists"`
}

// ArtistExport is an artist with its tracks.
type ArtistExport struct {
	Name   string        `json:"name"`
	MBID   string        `json:"mbid,omitempty"`
	Tracks []TrackExport `json:"tracks"`
}

// TrackExport is a track inside an [ArtistExport].
type TrackExport struct {
	Name        string `json:"name"`
	Album       string `json:"album,omitempty"`
	DiscNumber  int    `json:"disc_number,omitempty"`
	TrackNumber int    `json:"track_number,omitempty"`
	MBID        string `json:"mbid,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}
