// Last.fm API response types based on https://www.last.fm/api
package services

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/goccy/go-json"
)

// flexInt decodes Last.fm numbers, which arrive as JSON numbers, quoted strings or "".
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*n = flexInt(v)
	return nil
}

// LastfmArtist is the artist object embedded in track listings.
//
// Listings disagree on where the name lives: library.getTracks uses "name", user.getArtistTracks uses "#text".
type LastfmArtist struct {
	Name string
	MBID string
	URL  string
}

func (a *LastfmArtist) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &a.Name)
	}

	var raw struct {
		Name string `json:"name"`
		Text string `json:"#text"`
		MBID string `json:"mbid"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.Name = raw.Name
	if a.Name == "" {
		a.Name = raw.Text
	}
	a.MBID = raw.MBID
	a.URL = raw.URL
	return nil
}

// LastfmTrack is a track entry in any of the user listings.
type LastfmTrack struct {
	Name      string       `json:"name"`
	MBID      string       `json:"mbid"`
	URL       string       `json:"url"`
	PlayCount flexInt      `json:"playcount"`
	Artist    LastfmArtist `json:"artist"`
}

// ToRemoteTrack converts the wire representation into a [models.RemoteTrack].
func (t LastfmTrack) ToRemoteTrack() models.RemoteTrack {
	return models.RemoteTrack{
		Name:       t.Name,
		Artist:     t.Artist.Name,
		ArtistMBID: t.Artist.MBID,
		MBID:       t.MBID,
		PlayCount:  int(t.PlayCount),
		URL:        t.URL,
	}
}

// trackList decodes "track", which Last.fm sends as an object when the page has exactly one entry.
type trackList []LastfmTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")), len(trimmed) == 0:
		*l = nil
		return nil
	case trimmed[0] == '{':
		var one LastfmTrack
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*l = trackList{one}
		return nil
	default:
		var many []LastfmTrack
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
}

// pageAttr is the "@attr" pagination block.
type pageAttr struct {
	User       string  `json:"user"`
	Artist     string  `json:"artist"`
	Page       flexInt `json:"page"`
	PerPage    flexInt `json:"perPage"`
	TotalPages flexInt `json:"totalPages"`
	Total      flexInt `json:"total"`
}

func (a pageAttr) toMetadata() models.PageMetadata {
	return models.PageMetadata{
		Page:       int(a.Page),
		PerPage:    int(a.PerPage),
		TotalPages: int(a.TotalPages),
		Total:      int(a.Total),
	}
}

// LastfmTrackPage is a page of a track listing.
type LastfmTrackPage struct {
	Tracks trackList `json:"track"`
	Attr   pageAttr  `json:"@attr"`
}

// Remote returns the page's tracks as [models.RemoteTrack] values, in response order.
func (p LastfmTrackPage) Remote() []models.RemoteTrack {
	tracks := make([]models.RemoteTrack, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		tracks = append(tracks, t.ToRemoteTrack())
	}
	return tracks
}

// LovedTracksResponse is the user.getLovedTracks payload.
type LovedTracksResponse struct {
	LovedTracks LastfmTrackPage `json:"lovedtracks"`
}

// ArtistTracksResponse is the user.getArtistTracks payload.
type ArtistTracksResponse struct {
	ArtistTracks LastfmTrackPage `json:"artisttracks"`
}

// LibraryTracksResponse is the library.getTracks payload.
type LibraryTracksResponse struct {
	Tracks LastfmTrackPage `json:"tracks"`
}

// LastfmSession is an authenticated Last.fm session.
type LastfmSession struct {
	Name       string  `json:"name"`
	Key        string  `json:"key"`
	Subscriber flexInt `json:"subscriber"`
}

// MobileSessionResponse is the auth.getMobileSession payload.
type MobileSessionResponse struct {
	Session LastfmSession `json:"session"`
}

// errorEnvelope is present on every failed call, regardless of HTTP status.
type errorEnvelope struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
