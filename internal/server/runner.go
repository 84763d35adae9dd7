// Package server hosts the HTTP API and the daemon's background housekeeping.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/bulkimport/internal/events"
)

// Config for the daemon.
type Config struct {
	Addr            string
	EventRetention  time.Duration // zero keeps events forever
	PruneInterval   time.Duration
	ShutdownTimeout time.Duration
}

// Engine is the part of the import controller the runner stops on shutdown.
type Engine interface {
	Cancel() error
	Wait(ctx context.Context) error
}

// Runner manages the HTTP server and background components.
type Runner struct {
	handler  http.Handler
	eventLog *events.EventLog
	engine   Engine
	config   Config
	logger   *slog.Logger
}

// NewRunner creates a new runner. eventLog and engine may be nil.
func NewRunner(cfg Config, handler http.Handler, eventLog *events.EventLog, engine Engine, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = time.Hour
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	return &Runner{
		handler:  handler,
		eventLog: eventLog,
		engine:   engine,
		config:   cfg,
		logger:   logger.With("component", "server"),
	}
}

// Run listens on the configured address and serves until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", r.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", r.config.Addr, err)
	}
	return r.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully:
// the HTTP server stops accepting requests and any running job is
// cancelled and drained.
func (r *Runner) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           r.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.logger.Info("server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		r.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
		defer cancel()

		if r.engine != nil {
			if err := r.engine.Cancel(); err == nil {
				r.logger.Info("cancelled running import")
			}
			if err := r.engine.Wait(shutdownCtx); err != nil {
				r.logger.Warn("import did not drain", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if r.eventLog != nil && r.config.EventRetention > 0 {
		g.Go(func() error {
			r.runPruner(ctx)
			return nil
		})
	}

	err := g.Wait()
	r.logger.Info("server stopped")
	return err
}

func (r *Runner) runPruner(ctx context.Context) {
	ticker := time.NewTicker(r.config.PruneInterval)
	defer ticker.Stop()

	r.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.prune(ctx)
		}
	}
}

func (r *Runner) prune(ctx context.Context) {
	n, err := r.eventLog.Prune(ctx, r.config.EventRetention)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Error("prune events failed", "error", err)
		}
		return
	}
	if n > 0 {
		r.logger.Info("pruned events", "count", n, "retention", r.config.EventRetention)
	}
}
