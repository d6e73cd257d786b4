package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/repositories"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/urfave/cli/v3"
)

// userView is the JSON shape of a user. Session keys are never printed.
type userView struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Lastfm  *models.RemoteUser `json:"lastfm,omitempty"`
	CanSync bool               `json:"can_sync"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID(), Name: u.Name(), Lastfm: u.Lastfm(), CanSync: u.CanSync()}
}

func (r *Runner) findUser(ref string) (*models.User, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("%w: user name or ID is required", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return nil, err
	}
	return r.users.Find(ref)
}

// UsersList prints local users and their Last.fm links.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	if err := r.store(); err != nil {
		return err
	}

	criteria := map[string]any{}
	if cmd.Bool("linked") {
		criteria["linked"] = true
	}

	users, err := r.users.List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]userView, 0, len(users))
		for _, u := range users {
			views = append(views, newUserView(u))
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(users) == 0 {
		return r.writePlain("No users found\n")
	}

	r.writePlainHeader(fmt.Sprintf("Users (%d)", len(users)))
	for i, u := range users {
		account := u.Lastfm()
		switch {
		case account == nil:
			r.writePlain("%d. %s\n", i+1, u.Name())
		case u.CanSync():
			r.writePlain("%d. %s → %s (favorites: %t)\n", i+1, u.Name(), account.Username, account.Options.SyncFavorites)
		default:
			r.writePlain("%d. %s → %s (no session)\n", i+1, u.Name(), account.Username)
		}
		r.writePlain("   ID: %s\n", u.ID())
	}
	return nil
}

// UsersAdd creates a local user.
func (r *Runner) UsersAdd(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: user name is required", shared.ErrMissingArgument)
	}
	if err := r.store(); err != nil {
		return err
	}

	user := models.NewUser(0, name)
	if err := r.users.Create(user); err != nil {
		return err
	}

	r.logger.Info("created user", "user", user.Name(), "id", user.ID())
	return r.writePlain("✓ Created user %s (%s)\n", user.Name(), user.ID())
}

// UsersRemove soft-deletes a local user.
func (r *Runner) UsersRemove(ctx context.Context, cmd *cli.Command) error {
	user, err := r.findUser(cmd.StringArg("user"))
	if err != nil {
		return err
	}

	if err := r.users.Delete(user.ID()); err != nil {
		return err
	}

	r.logger.Info("removed user", "user", user.Name())
	return r.writePlain("✓ Removed user %s\n", user.Name())
}

// UsersLink attaches a Last.fm account with a session key obtained elsewhere.
func (r *Runner) UsersLink(ctx context.Context, cmd *cli.Command) error {
	user, err := r.findUser(cmd.StringArg("user"))
	if err != nil {
		return err
	}

	remote := models.RemoteUser{
		Username:   strings.TrimSpace(cmd.String("username")),
		SessionKey: strings.TrimSpace(cmd.String("session-key")),
		Options:    models.SyncOptions{SyncFavorites: cmd.Bool("sync-favorites")},
	}
	if !remote.HasSession() {
		return fmt.Errorf("%w: --username and --session-key are required", shared.ErrMissingArgument)
	}

	user.Link(remote)
	if err := r.users.Update(user); err != nil {
		return err
	}

	r.logger.Info("linked Last.fm account", "user", user.Name(), "lastfm", remote.Username)
	return r.writePlain("✓ Linked %s to Last.fm account %s\n", user.Name(), remote.Username)
}

// UsersUnlink drops the Last.fm account of a user, which removes them from batch syncs.
func (r *Runner) UsersUnlink(ctx context.Context, cmd *cli.Command) error {
	user, err := r.findUser(cmd.StringArg("user"))
	if err != nil {
		return err
	}

	if user.Lastfm() == nil {
		return r.writePlain("%s has no Last.fm account\n", user.Name())
	}

	user.Unlink()
	if err := r.users.Update(user); err != nil {
		return err
	}

	r.logger.Info("unlinked Last.fm account", "user", user.Name())
	return r.writePlain("✓ Unlinked %s\n", user.Name())
}

// UsersOptions updates the sync options of a linked user.
func (r *Runner) UsersOptions(ctx context.Context, cmd *cli.Command) error {
	user, err := r.findUser(cmd.StringArg("user"))
	if err != nil {
		return err
	}

	account := user.Lastfm()
	if account == nil {
		return fmt.Errorf("%w: %s has no Last.fm account", shared.ErrNotAuthenticated, user.Name())
	}

	if cmd.IsSet("sync-favorites") {
		updated := *account
		updated.Options.SyncFavorites = cmd.Bool("sync-favorites")
		user.Link(updated)
		if err := r.users.Update(user); err != nil {
			return err
		}
		account = user.Lastfm()
		r.logger.Info("updated sync options", "user", user.Name(), "sync_favorites", account.Options.SyncFavorites)
	}

	return r.writePlain("%s → %s\n  sync favorites: %t\n", user.Name(), account.Username, account.Options.SyncFavorites)
}

// UsersFavorites lists the tracks flagged as favorite for a user.
func (r *Runner) UsersFavorites(ctx context.Context, cmd *cli.Command) error {
	user, err := r.findUser(cmd.StringArg("user"))
	if err != nil {
		return err
	}

	favorites, err := r.userData.ListFavorites(ctx, user.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if favorites == nil {
			favorites = []repositories.FavoriteTrack{}
		}
		return r.writeJSON(favorites, cmd.Bool("pretty"))
	}

	if len(favorites) == 0 {
		return r.writePlain("%s has no favorites\n", user.Name())
	}

	r.writePlainHeader(fmt.Sprintf("Favorites of %s (%d)", user.Name(), len(favorites)))
	for i, f := range favorites {
		r.writePlain("%d. %s - %s", i+1, f.Track.Artist, f.Track.Name)
		if f.Track.Album != "" {
			r.writePlain(" [%s]", f.Track.Album)
		}
		r.writePlain("\n")
	}
	return nil
}
