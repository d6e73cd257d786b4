package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/services"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("LFMX_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config, err := shared.LoadConfig(configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		config = shared.DefaultConfig()
	case err != nil:
		logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		config = shared.DefaultConfig()
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	var lastfmService services.Service
	if config.HasCredentials() {
		svc, err := services.NewLastfmService(services.LastfmOpts{
			APIKey:    config.Lastfm.APIKey,
			Secret:    config.Lastfm.Secret,
			BaseURL:   config.Lastfm.BaseURL,
			Timeout:   config.Lastfm.Timeout.Duration,
			RateLimit: config.Lastfm.RateLimit,
			Logger:    logger,
		})
		if err != nil {
			logger.Warn("Last.fm client not available", "error", err)
		} else {
			lastfmService = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Lastfm:     lastfmService,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:    "lfmx",
		Usage:   "Import Last.fm listening history and loved tracks into a local music catalog",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
				Action: func(ctx context.Context, cmd *cli.Command, v bool) error {
					if v {
						shared.SetLogLevel(logger, log.DebugLevel)
					}
					return nil
				},
			},
		},
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrCancelled) {
			logger.Warn("cancelled")
			runner.Close()
			os.Exit(130)
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
