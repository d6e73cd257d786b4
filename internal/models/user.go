package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/lfmx/internal/shared"
)

// SyncOptions are the per-account switches that control what a sync writes.
type SyncOptions struct {
	SyncFavorites bool `json:"sync_favorites"`
}

// RemoteUser is a Last.fm account linked to a catalog user.
//
// Immutable for the duration of a sync run.
type RemoteUser struct {
	Username   string      `json:"username"`
	SessionKey string      `json:"-"`
	Options    SyncOptions `json:"options"`
}

// HasSession reports whether the account carries a usable session key.
func (r RemoteUser) HasSession() bool {
	return strings.TrimSpace(r.Username) != "" && strings.TrimSpace(r.SessionKey) != ""
}

// User is a local catalog user, optionally linked to a Last.fm account.
type User struct {
	record
	name   string
	lastfm *RemoteUser
}

// NewUser creates an unlinked [User].
func NewUser(sequence int, name string) *User {
	return &User{record: newRecord(sequence), name: name}
}

func (u *User) Name() string        { return u.name }
func (u *User) SetName(name string) { u.name = name }

// Lastfm returns the linked account, or nil.
func (u *User) Lastfm() *RemoteUser { return u.lastfm }

// Link attaches (or replaces) the Last.fm account.
func (u *User) Link(remote RemoteUser) { u.lastfm = &remote }

// Unlink removes the Last.fm account.
func (u *User) Unlink() { u.lastfm = nil }

// CanSync reports whether the user is eligible for a batch sync.
func (u *User) CanSync() bool {
	return u.lastfm != nil && u.lastfm.HasSession()
}

// Validate checks if the user's data is valid.
func (u *User) Validate() error {
	if strings.TrimSpace(u.name) == "" {
		return fmt.Errorf("%w: user name is required", shared.ErrInvalidInput)
	}
	if u.lastfm != nil && strings.TrimSpace(u.lastfm.Username) == "" {
		return fmt.Errorf("%w: linked Last.fm account needs a username", shared.ErrInvalidInput)
	}
	return nil
}

func (u *User) String() string {
	if u.lastfm != nil {
		return fmt.Sprintf("%s (%s)", u.name, u.lastfm.Username)
	}
	return u.name
}
