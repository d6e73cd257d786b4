package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/tasks"
)

var (
	_ list.Item = userItem{}
	_ list.Item = resultItem{}
)

// userItem wraps [models.User] to implement [list.Item].
type userItem struct {
	user *models.User
}

func (i userItem) FilterValue() string { return i.user.Name() }
func (i userItem) Title() string       { return i.user.Name() }
func (i userItem) Description() string {
	account := i.user.Lastfm()
	if account == nil {
		return "not linked"
	}
	desc := "last.fm: " + account.Username
	if account.Options.SyncFavorites {
		desc += " • favorites"
	}
	if !account.HasSession() {
		desc += " • no session"
	}
	return desc
}

// resultItem wraps [tasks.UserResult] to implement [list.Item].
type resultItem struct {
	result tasks.UserResult
}

func (i resultItem) FilterValue() string { return i.result.User }
func (i resultItem) Title() string {
	if i.result.Err != nil {
		return styles.err.Render("✗ " + i.result.User)
	}
	return styles.ok.Render("✓ " + i.result.User)
}
func (i resultItem) Description() string {
	if i.result.Err != nil {
		return i.result.Error()
	}
	r := i.result.Result
	return fmt.Sprintf("%d/%d matched (%.1f%%) • %d remote • %d favorites updated",
		r.MatchedSongs, r.LocalSongs, r.MatchRate(), r.RemoteSongs, r.FavoritesUpdated)
}
