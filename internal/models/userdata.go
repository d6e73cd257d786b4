package models

import "time"

// SaveReason records why a [UserData] row was written.
type SaveReason string

const (
	SaveReasonUpdateUserRating SaveReason = "update_user_rating"
	SaveReasonPlaybackFinished SaveReason = "playback_finished"
	SaveReasonImport           SaveReason = "import"
)

// UserData is per-user metadata about one catalog track.
//
// The reconciler only ever changes IsFavorite; the remaining fields belong to other writers
// and are carried through unchanged.
type UserData struct {
	UserID       string     `json:"user_id"`
	TrackID      string     `json:"track_id"`
	IsFavorite   bool       `json:"is_favorite"`
	PlayCount    int        `json:"play_count"`
	Played       bool       `json:"played"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
	Rating       *float64   `json:"rating,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewUserData returns the zero record for a (user, track) pair that has never been written.
func NewUserData(userID, trackID string) *UserData {
	return &UserData{UserID: userID, TrackID: trackID}
}
