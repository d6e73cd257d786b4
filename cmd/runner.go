package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/repositories"
	"github.com/desertthunder/lfmx/internal/services"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	lastfm     services.Service
	db         *sql.DB
	ownsDB     bool
	users      *repositories.UserRepository
	catalog    *repositories.CatalogRepository
	userData   *repositories.UserDataRepository
	runs       *repositories.SyncRunRepository
	flag       *tasks.SyncFlag
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Lastfm     services.Service
	DB         *sql.DB // opened lazily from Config.Database when nil
	Flag       *tasks.SyncFlag
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Flag == nil {
		opts.Flag = tasks.DefaultSyncFlag
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		lastfm:     opts.Lastfm,
		flag:       opts.Flag,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if opts.DB != nil {
		r.useDB(opts.DB)
	}
	return r
}

func (r *Runner) useDB(db *sql.DB) {
	r.db = db
	r.users = repositories.NewUserRepository(db)
	r.catalog = repositories.NewCatalogRepository(db)
	r.userData = repositories.NewUserDataRepository(db)
	r.runs = repositories.NewSyncRunRepository(db)
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// store opens the configured database on first use and runs pending migrations.
func (r *Runner) store() error {
	if r.db != nil {
		return nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", r.config.Database.Path, err)
	}
	r.ownsDB = true
	r.useDB(db)
	r.logger.Debug("database opened", "path", r.config.Database.Path)
	return nil
}

// Close releases the database if the runner opened it.
func (r *Runner) Close() error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.ownsDB = false
	return err
}

func (r *Runner) requireLastfm() error {
	if r.lastfm == nil {
		return fmt.Errorf("%w: set lastfm.api_key and lastfm.secret in %s", shared.ErrMissingCredentials, r.configPath)
	}
	return nil
}

// controller wires the reconciler and batch controller for one trigger.
func (r *Runner) controller(trigger string) (*tasks.BatchController, error) {
	if err := r.requireLastfm(); err != nil {
		return nil, err
	}
	if err := r.store(); err != nil {
		return nil, err
	}

	reconciler := tasks.NewReconciler(tasks.ReconcilerOpts{
		API:            r.lastfm,
		Catalog:        r.catalog,
		UserData:       r.userData,
		ArtistPageSize: r.config.Sync.ArtistPageSize,
		LovedLimit:     r.config.Sync.LovedLimit,
		Logger:         r.logger,
	})

	return tasks.NewBatchController(tasks.BatchOpts{
		Syncer:   reconciler,
		Flag:     r.flag,
		Recorder: r.runs,
		Trigger:  trigger,
		Logger:   r.logger,
	}), nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, usersCommand, catalogCommand, syncCommand, lastfmCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
