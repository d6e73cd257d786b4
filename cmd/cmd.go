// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// Flags and arguments keep parse state, so every command gets its own instance.
func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"}
}

func userArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "user", UsageText: "user name or ID"}}
}

func usernameArg() []cli.Argument {
	return []cli.Argument{&cli.StringArg{Name: "username", UsageText: "Last.fm username"}}
}

// setupCommand handles configuration and database setup
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Configuration and database setup",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Create the config file if missing and run database migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "migrations",
				Usage:  "Show which migrations have been applied",
				Action: r.SetupMigrations,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand handles Last.fm account linking
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Last.fm authentication",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Exchange Last.fm credentials for a session key and link it to a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Local user name or ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "username",
						Usage:    "Last.fm username",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Last.fm password (or LASTFM_PASSWORD)",
						Sources: cli.EnvVars("LASTFM_PASSWORD"),
					},
					&cli.BoolFlag{
						Name:  "sync-favorites",
						Usage: "Copy loved tracks to favorites during sync",
						Value: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show API credential and account link status",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// usersCommand manages local users and their Last.fm links
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "users",
		Aliases: []string{"user"},
		Usage:   "Manage local users",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "linked",
						Usage: "Only users with a Last.fm account",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.UsersList,
			},
			{
				Name:      "add",
				Usage:     "Create a user",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Action:    r.UsersAdd,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete a user",
				ArgsUsage: "<user>",
				Arguments: userArg(),
				Action:    r.UsersRemove,
			},
			{
				Name:      "link",
				Usage:     "Link a Last.fm account using an existing session key",
				ArgsUsage: "<user>",
				Arguments: userArg(),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Usage:    "Last.fm username",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "session-key",
						Usage:    "Last.fm session key",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "sync-favorites",
						Usage: "Copy loved tracks to favorites during sync",
						Value: true,
					},
				},
				Action: r.UsersLink,
			},
			{
				Name:      "unlink",
				Usage:     "Remove the Last.fm account of a user",
				ArgsUsage: "<user>",
				Arguments: userArg(),
				Action:    r.UsersUnlink,
			},
			{
				Name:      "options",
				Usage:     "Change the sync options of a linked user",
				ArgsUsage: "<user>",
				Arguments: userArg(),
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "sync-favorites",
						Usage: "Copy loved tracks to favorites during sync",
					},
				},
				Action: r.UsersOptions,
			},
			{
				Name:      "favorites",
				Usage:     "List a user's favorite tracks",
				ArgsUsage: "<user>",
				Arguments: userArg(),
				Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
				Action:    r.UsersFavorites,
			},
		},
	}
}

// catalogCommand manages the local artist and track catalog
func catalogCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "Manage the local music catalog",
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import artists and tracks from a JSON export",
				ArgsUsage: "<file>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "file"}},
				Flags:     []cli.Flag{jsonFlag()},
				Action:    r.CatalogImport,
			},
			{
				Name:   "artists",
				Usage:  "List catalog artists",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.CatalogArtists,
			},
			{
				Name:      "tracks",
				Usage:     "List the tracks of an artist",
				ArgsUsage: "<artist>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "artist", UsageText: "artist name or ID"}},
				Flags:     []cli.Flag{jsonFlag(), prettyFlag()},
				Action:    r.CatalogTracks,
			},
		},
	}
}

// syncCommand runs and inspects Last.fm imports
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Import Last.fm history into the catalog",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Sync every linked user, or only the given ones",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Limit the run to these users (name or ID)",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write a report in this format (json, csv, md, txt)",
					},
					&cli.StringFlag{
						Name:  "report-dir",
						Usage: "Directory for the report (default: sync.report_dir)",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.SyncRun,
			},
			{
				Name:   "status",
				Usage:  "Show the most recent run",
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.SyncStatus,
			},
			{
				Name:  "history",
				Usage: "List previous runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.SyncHistory,
			},
		},
	}
}

// lastfmCommand queries the Last.fm API directly
func lastfmCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "lastfm",
		Aliases: []string{"lfm"},
		Usage:   "Query the Last.fm API",
		Commands: []*cli.Command{
			{
				Name:      "loved",
				Usage:     "List a user's loved tracks",
				ArgsUsage: "<username>",
				Arguments: usernameArg(),
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of tracks to return",
						Value: 50,
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.LastfmLoved,
			},
			{
				Name:      "artist-tracks",
				Usage:     "List a user's scrobbled tracks of an artist",
				ArgsUsage: "<username> <artist>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
					&cli.StringArg{Name: "artist"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page to fetch (1-based)",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Tracks per page",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Fetch every page",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.LastfmArtistTracks,
			},
			{
				Name:      "library",
				Usage:     "List a user's track library",
				ArgsUsage: "<username>",
				Arguments: usernameArg(),
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page to fetch (1-based)",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Tracks per page (default: sync.library_page_size)",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Fetch every page",
					},
					jsonFlag(),
					prettyFlag(),
				},
				Action: r.LastfmLibrary,
			},
			loveCommand(r, true),
			loveCommand(r, false),
			{
				Name:      "call",
				Usage:     "Invoke any API method and print the raw response",
				ArgsUsage: "<method>",
				Arguments: []cli.Argument{&cli.StringArg{Name: "method", UsageText: "e.g. user.getInfo"}},
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "param",
						Aliases: []string{"p"},
						Usage:   "Request parameter as key=value",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Sign the call with the session key of this local user",
					},
					prettyFlag(),
				},
				Action: r.LastfmCall,
			},
		},
	}
}

// loveCommand builds "lastfm love" or "lastfm unlove"
func loveCommand(r *Runner, love bool) *cli.Command {
	name, usage := "love", "Mark a track as loved on a linked user's Last.fm account"
	if !love {
		name, usage = "unlove", "Remove a track from a linked user's Last.fm loved tracks"
	}

	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<artist> <track>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "artist"},
			&cli.StringArg{Name: "track"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "Local user whose Last.fm session is used",
			},
		},
		Action: r.LastfmLove(love),
	}
}

// serveCommand starts the HTTP server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the login, sync and metrics endpoints over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Address to bind (default: server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the interactive terminal UI
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Pick users and watch a sync in an interactive terminal UI",
		Action: r.TUI,
	}
}
