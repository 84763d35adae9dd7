// Package v1 implements the HTTP API for driving imports and browsing the library.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/library"
)

// Server is the v1 API server.
type Server struct {
	deps   ServerDeps
	jobCtx context.Context
	log    *slog.Logger
}

// New creates a new v1 API server with validated dependencies.
func New(deps ServerDeps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingDependency, err)
	}
	if deps.DefaultMode == "" {
		deps.DefaultMode = batch.ModeCopy
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	jobCtx := deps.JobContext
	if jobCtx == nil {
		jobCtx = context.Background()
	}
	return &Server{
		deps:   deps,
		jobCtx: jobCtx,
		log:    logger.With("component", "api"),
	}, nil
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Current job
	mux.HandleFunc("GET /api/v1/job", s.getJob)
	mux.HandleFunc("POST /api/v1/job", s.startJob)
	mux.HandleFunc("DELETE /api/v1/job", s.clearJob)
	mux.HandleFunc("GET /api/v1/job/results", s.listResults)
	mux.HandleFunc("POST /api/v1/job/pause", s.pauseJob)
	mux.HandleFunc("POST /api/v1/job/resume", s.resumeJob)
	mux.HandleFunc("POST /api/v1/job/cancel", s.cancelJob)
	mux.HandleFunc("POST /api/v1/job/restart", s.restartJob)

	// Job history
	mux.HandleFunc("GET /api/v1/jobs", s.listJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.getJobSummary)
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", s.requireEventLog(s.jobEvents))

	// Library
	mux.HandleFunc("GET /api/v1/media", s.listMedia)
	mux.HandleFunc("GET /api/v1/media/{id}", s.getMedia)
	mux.HandleFunc("DELETE /api/v1/media/{id}", s.deleteMedia)

	// Events
	mux.HandleFunc("GET /api/v1/events", s.requireEventLog(s.listEvents))

	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Detail map[string]any `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeErrorDetail(w, code, errCode, message, nil)
}

func writeErrorDetail(w http.ResponseWriter, code int, errCode, message string, detail map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode, Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeEngineError maps controller and admission errors onto HTTP responses.
func writeEngineError(w http.ResponseWriter, err error) {
	var overload *batch.PickerOverloadError
	switch {
	case errors.As(err, &overload):
		writeErrorDetail(w, http.StatusRequestEntityTooLarge, "USE_BATCH_MODE", err.Error(), map[string]any{
			"count":   overload.Count,
			"ceiling": overload.Ceiling,
			"actions": []batch.RecoveryAction{batch.ActionUseBatchMode},
		})
	case batch.IsPickerCrash(err):
		writeErrorDetail(w, http.StatusRequestEntityTooLarge, "USE_BATCH_MODE", err.Error(), map[string]any{
			"actions": []batch.RecoveryAction{batch.ActionUseBatchMode},
		})
	case errors.Is(err, batch.ErrJobActive):
		writeError(w, http.StatusConflict, "JOB_ACTIVE", err.Error())
	case errors.Is(err, batch.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, batch.ErrNoJob):
		writeError(w, http.StatusNotFound, "NO_JOB", err.Error())
	case errors.Is(err, batch.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, "INVALID_SELECTION", err.Error())
	default:
		var access *batch.AccessError
		if errors.As(err, &access) {
			writeError(w, http.StatusForbidden, "FOLDER_ACCESS_DENIED", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func writeStoreError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, library.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", what+" not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func queryInt(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func queryString(r *http.Request, name string) *string {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	return &v
}

// clampPage normalizes limit/offset query parameters.
func clampPage(limit, offset, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
