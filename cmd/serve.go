package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP server until interrupted. A sync started over HTTP is cancelled on shutdown.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	controller, err := r.controller(models.TriggerHTTP)
	if err != nil {
		return err
	}

	host := r.config.Server.Host
	if cmd.IsSet("host") {
		host = cmd.String("host")
	}
	port := r.config.Server.Port
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}

	srv := server.New(server.Options{
		API:        r.lastfm,
		Users:      r.users,
		Controller: controller,
		Logger:     r.logger,
	})

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	r.writePlain("Listening on http://%s (POST /sync, GET /sync/status, POST /lastfm/login, GET /metrics)\n", addr)
	return srv.ListenAndServe(ctx, addr)
}
