package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/vmunix/bulkimport/internal/api/v1"
	"github.com/vmunix/bulkimport/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long:  "Runs the import engine behind an HTTP API until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 200 { // Only capture first WriteHeader call
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := v1.ServerDeps{
		Engine:      a.controller,
		Guard:       a.guard,
		Library:     a.library,
		Jobs:        a.jobs,
		EventLog:    a.eventLog,
		OpenFolder:  a.openFolder,
		DefaultMode: a.mode,
		Logger:      a.log,
		JobContext:  ctx,
	}
	if a.cfg.Server.Metrics {
		deps.Metrics = a.metrics.Handler()
	}
	api, err := v1.New(deps)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	var handler http.Handler = mux
	if a.cfg.Server.Metrics {
		handler = a.metrics.Middleware(handler)
	}
	handler = logRequests(handler, a.log)

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	a.log.Info("server starting",
		"addr", addr,
		"database", a.cfg.Database.Path,
		"library", a.cfg.Library.Root,
		"mode", a.mode,
		"admission_ceiling", a.guard.Ceiling(),
		"metrics", a.cfg.Server.Metrics,
		"log_level", a.cfg.Server.LogLevel,
	)

	runner := server.NewRunner(server.Config{
		Addr:           addr,
		EventRetention: a.cfg.Import.EventRetention,
	}, handler, a.eventLog, a.controller, a.log)
	return runner.Run(ctx)
}
