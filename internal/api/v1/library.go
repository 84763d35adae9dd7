package v1

import (
	"errors"
	"net/http"

	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/library"
)

func toMediaResponse(m *library.Media) mediaResponse {
	return mediaResponse{
		ID:          m.ID,
		ContentHash: m.ContentHash,
		Title:       m.Title,
		Artist:      m.Artist,
		Album:       m.Album,
		Location:    m.Location,
		SourcePath:  m.SourcePath,
		Mode:        m.Mode,
		SizeBytes:   m.SizeBytes,
		DurationMS:  m.Duration.Milliseconds(),
		Container:   m.Container,
		VideoCodec:  m.VideoCodec,
		AudioCodec:  m.AudioCodec,
		Width:       m.Width,
		Height:      m.Height,
		Channels:    m.Channels,
		Bitrate:     m.Bitrate,
		JobID:       m.JobID,
		AddedAt:     m.AddedAt,
	}
}

func (s *Server) listMedia(w http.ResponseWriter, r *http.Request) {
	limit, offset := clampPage(queryInt(r, "limit", 50), queryInt(r, "offset", 0), 1000)
	filter := library.MediaFilter{
		Mode:   queryString(r, "mode"),
		JobID:  queryString(r, "job_id"),
		Title:  queryString(r, "title"),
		Limit:  limit,
		Offset: offset,
	}

	items, total, err := s.deps.Library.ListMedia(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
		return
	}

	resp := listMediaResponse{
		Items:  make([]mediaResponse, len(items)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for i, m := range items {
		resp.Items[i] = toMediaResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid media ID")
		return
	}
	m, err := s.deps.Library.GetMedia(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "media")
		return
	}
	writeJSON(w, http.StatusOK, toMediaResponse(m))
}

// deleteMedia removes the library record only. Files are left on disk.
func (s *Server) deleteMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "invalid media ID")
		return
	}
	if err := s.deps.Library.DeleteMedia(r.Context(), id); err != nil {
		writeStoreError(w, err, "media")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := clampPage(queryInt(r, "limit", 20), 0, 500)
	jobs, err := s.deps.Jobs.ListJobs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
		return
	}
	if jobs == nil {
		jobs = []batch.Summary{}
	}
	writeJSON(w, http.StatusOK, listJobsResponse{Items: jobs})
}

func (s *Server) getJobSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Jobs.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, library.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "DATABASE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
