package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/vmunix/bulkimport/internal/access"
	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/config"
	"github.com/vmunix/bulkimport/internal/events"
	"github.com/vmunix/bulkimport/internal/library"
	"github.com/vmunix/bulkimport/internal/media"
	"github.com/vmunix/bulkimport/internal/metrics"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig loads --config, or the discovered config file. With nothing
// to discover it falls back to defaults.
func loadConfig() (*config.Config, string, error) {
	path := configPath
	if path == "" {
		found, err := config.Discover()
		switch {
		case errors.Is(err, config.ErrNotFound):
			return config.Default(), "", nil
		case err != nil:
			return nil, "", err
		}
		path = found
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// app holds the wired components shared by local commands.
type app struct {
	cfg        *config.Config
	log        *slog.Logger
	db         *sql.DB
	library    *library.Store
	jobs       *library.JobStore
	eventLog   *events.EventLog
	bus        *events.Bus
	metrics    *metrics.Metrics
	controller *batch.Controller
	guard      *batch.Guard
	mode       batch.Mode

	// interrupted is set by the first SIGINT/SIGTERM and stops later passes.
	interrupted atomic.Bool
}

func openApp(logOut io.Writer) (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	level := cfg.Server.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
	if path == "" {
		logger.Warn("no config file found, using defaults")
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("config", "warning", w)
	}

	mode, err := batch.ParseMode(cfg.Import.DefaultMode)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := library.OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      logger,
		db:       db,
		library:  library.NewStore(db, cfg.Library.Root, logger),
		jobs:     library.NewJobStore(db),
		eventLog: events.NewEventLog(db),
		metrics:  metrics.New(true),
		guard:    batch.NewGuard(cfg.Import.AdmissionCeiling, logger),
		mode:     mode,
	}
	a.bus = events.NewBus(a.eventLog, logger.With("component", "bus"))

	validator := media.NewValidator(
		media.FFProbe{Bin: cfg.Validation.FFProbe},
		media.Limits{
			MinSize:     cfg.Validation.MinSize,
			MaxSize:     cfg.Validation.MaxSize,
			MinDuration: cfg.Validation.MinDuration,
			MaxDuration: cfg.Validation.MaxDuration,
		},
		cfg.Validation.ReadTags,
		logger,
	)
	governor := batch.NewGovernor(batch.GovernorConfig{
		PacingScale:     cfg.Import.PacingScale,
		MemoryThreshold: cfg.Import.MemoryThreshold,
	}, logger).WithRecorder(a.metrics)

	a.controller = batch.NewController(batch.Options{
		Validator:   validator,
		Store:       a.library,
		Governor:    governor,
		Bus:         a.bus,
		History:     a.jobs,
		Recorder:    a.metrics,
		StagingDir:  cfg.Library.Staging,
		FileTimeout: cfg.Import.FileTimeout,
		Logger:      logger,
	})
	return a, nil
}

// openFolder grants folder-scoped access for reference-mode imports.
func (a *app) openFolder(root string) (batch.Folder, error) {
	f, err := access.New(root, a.log)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (a *app) Close() error {
	_ = a.bus.Close()
	return a.db.Close()
}
