package v1

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/source"
)

func (s *Server) currentJob() jobResponse {
	p := s.deps.Engine.Progress()
	resp := jobResponse{
		Progress:         p,
		Label:            p.Label(),
		AdmissionCeiling: s.deps.Guard.Ceiling(),
	}
	if job := s.deps.Engine.Job(); job != nil {
		resp.BatchSize = job.BatchSize
		resp.ConcurrencyLimit = job.ConcurrencyLimit
	}
	return resp
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.currentJob())
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	mode := s.deps.DefaultMode
	if req.Mode != "" {
		m, err := batch.ParseMode(req.Mode)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		mode = m
	}

	paths, err := source.Expand(r.Context(), req.Paths, source.Options{Recursive: req.Recursive, SkipSamples: true})
	if err != nil {
		switch {
		case errors.Is(err, source.ErrEmptySelection):
			writeError(w, http.StatusBadRequest, "EMPTY_SELECTION", err.Error())
			return
		case errors.Is(err, fs.ErrNotExist):
			writeError(w, http.StatusBadRequest, "PATH_NOT_FOUND", err.Error())
			return
		}
		writeEngineError(w, err)
		return
	}

	var folder batch.Folder
	if req.Folder != "" {
		if s.deps.OpenFolder == nil {
			writeError(w, http.StatusBadRequest, "INVALID_SELECTION", "folder grants are not available")
			return
		}
		f, err := s.deps.OpenFolder(req.Folder)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SELECTION", err.Error())
			return
		}
		folder = f
	}

	job, err := s.deps.Guard.Admit(paths, mode, folder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if err := s.deps.Engine.Start(s.jobCtx, job); err != nil {
		writeEngineError(w, err)
		return
	}

	s.log.Info("job started", "job_id", job.ID, "files", job.Total(), "mode", job.Mode)
	writeJSON(w, http.StatusAccepted, s.currentJob())
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	s.command(w, s.deps.Engine.Pause)
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	s.command(w, s.deps.Engine.Resume)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	s.command(w, s.deps.Engine.Cancel)
}

func (s *Server) restartJob(w http.ResponseWriter, r *http.Request) {
	s.command(w, func() error { return s.deps.Engine.Restart(s.jobCtx) })
}

func (s *Server) command(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.currentJob())
}

func (s *Server) clearJob(w http.ResponseWriter, r *http.Request) {
	s.deps.Engine.ClearResults()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	limit, offset := clampPage(queryInt(r, "limit", 100), queryInt(r, "offset", 0), 1000)

	var outcome batch.Outcome
	if v := queryString(r, "outcome"); v != nil {
		outcome = batch.Outcome(*v)
	}
	var kind batch.ErrorKind
	if v := queryString(r, "kind"); v != nil {
		kind = batch.ErrorKind(*v)
	}

	var filtered []batch.Result
	for _, res := range s.deps.Engine.Results() {
		if outcome != "" && res.Outcome != outcome {
			continue
		}
		if kind != "" && res.Kind != kind {
			continue
		}
		filtered = append(filtered, res)
	}

	resp := listResultsResponse{
		Items:  []batch.Result{},
		Total:  len(filtered),
		Limit:  limit,
		Offset: offset,
	}
	if offset < len(filtered) {
		resp.Items = filtered[offset:min(offset+limit, len(filtered))]
	}
	writeJSON(w, http.StatusOK, resp)
}
