// package server contains middleware & handlers for the lfmx HTTP service
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lfmx/internal/models"
	"github.com/desertthunder/lfmx/internal/services"
	"github.com/desertthunder/lfmx/internal/shared"
	"github.com/desertthunder/lfmx/internal/tasks"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, request ids, metrics, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the lfmx service.
// Implementations handle specific endpoints (login, sync, status).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// UserStore is the part of the user repository the handlers need.
type UserStore interface {
	Find(idOrName string) (*models.User, error)
	Update(user *models.User) error
	List(criteria map[string]any) ([]*models.User, error)
}

// Options contains the collaborators of a [Server].
type Options struct {
	API        services.Service
	Users      UserStore
	Controller *tasks.BatchController
	Logger     *log.Logger
}

// Server exposes login, sync and metrics endpoints.
type Server struct {
	router *BasicRouter
	sync   *SyncHandler
	logger *log.Logger
}

// New creates a [Server] with its routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(RequestID, Logging(opts.Logger), Metrics)

	syncHandler := NewSyncHandler(opts.Controller, opts.Users, opts.Logger)

	router.Handle(http.MethodPost, "/lastfm/login", NewLoginHandler(opts.API, opts.Users, opts.Logger))
	router.Handle(http.MethodPost, "/sync", http.HandlerFunc(syncHandler.Start))
	router.Handle(http.MethodGet, "/sync/status", http.HandlerFunc(syncHandler.Status))
	router.Handle(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{router: router, sync: syncHandler, logger: opts.Logger}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Wait blocks until a batch started over HTTP has finished.
func (s *Server) Wait() { s.sync.Wait() }

// ListenAndServe serves on addr until ctx is done, then shuts down and waits for a running batch.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.sync.Cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("error shutting down server", "error", err)
	}
	s.sync.Wait()
	return nil
}
