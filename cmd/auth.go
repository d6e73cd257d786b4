package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin exchanges Last.fm credentials for a session key and links it to a local user.
//
// The password is used once and never stored.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireLastfm(); err != nil {
		return err
	}
	if err := r.store(); err != nil {
		return err
	}

	username := strings.TrimSpace(cmd.String("username"))
	password := cmd.String("password")
	if username == "" || password == "" {
		return fmt.Errorf("%w: --username and --password are required", shared.ErrMissingArgument)
	}

	user, err := r.users.Find(cmd.String("user"))
	if err != nil {
		return err
	}

	r.logger.Info("requesting Last.fm session", "user", user.Name(), "lastfm", username)

	session, err := r.lastfm.MobileSession(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	options := models.SyncOptions{SyncFavorites: true}
	if current := user.Lastfm(); current != nil {
		options = current.Options
	}
	if cmd.IsSet("sync-favorites") {
		options.SyncFavorites = cmd.Bool("sync-favorites")
	}

	user.Link(models.RemoteUser{Username: session.Name, SessionKey: session.Key, Options: options})
	if err := r.users.Update(user); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	r.logger.Info("linked Last.fm account", "user", user.Name(), "lastfm", session.Name)
	return r.writePlain("✓ Linked %s to Last.fm account %s\n", user.Name(), session.Name)
}

type authStatus struct {
	Credentials bool           `json:"credentials"`
	ConfigPath  string         `json:"config_path"`
	Users       []linkedStatus `json:"users"`
}

type linkedStatus struct {
	User          string `json:"user"`
	Lastfm        string `json:"lastfm,omitempty"`
	Session       bool   `json:"session"`
	SyncFavorites bool   `json:"sync_favorites"`
}

// AuthStatus reports whether API credentials are configured and which users hold a session.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	users, err := r.users.List(map[string]any{})
	if err != nil {
		return err
	}

	status := authStatus{Credentials: r.lastfm != nil, ConfigPath: r.configPath, Users: make([]linkedStatus, 0, len(users))}
	for _, u := range users {
		s := linkedStatus{User: u.Name()}
		if account := u.Lastfm(); account != nil {
			s.Lastfm = account.Username
			s.Session = account.HasSession()
			s.SyncFavorites = account.Options.SyncFavorites
		}
		status.Users = append(status.Users, s)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	if status.Credentials {
		r.writePlain("✓ Last.fm API credentials configured\n")
	} else {
		r.writePlain("✗ Last.fm API credentials missing (%s)\n", r.configPath)
	}

	if len(status.Users) == 0 {
		return r.writePlain("No users found\n")
	}

	r.writePlainln("Users:")
	for _, s := range status.Users {
		switch {
		case s.Session:
			r.writePlain("  ✓ %s → %s\n", s.User, s.Lastfm)
		case s.Lastfm != "":
			r.writePlain("  ✗ %s → %s (no session)\n", s.User, s.Lastfm)
		default:
			r.writePlain("  - %s (not linked)\n", s.User)
		}
	}
	return nil
}
