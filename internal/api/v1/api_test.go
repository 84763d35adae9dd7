package v1

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/bulkimport/internal/api/v1/mocks"
	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/library"
)

func TestNew_ValidatesDependencies(t *testing.T) {
	_, err := New(ServerDeps{})
	assert.ErrorIs(t, err, ErrMissingDependency)
}

func TestStartJob_ImportsDirectory(t *testing.T) {
	env := newTestEnv(t, 500)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "b.mkv", "c.mp3", "broken.mp4", "notes.txt")

	w := env.do(t, http.MethodPost, "/api/v1/job", map[string]any{"paths": []string{dir}, "mode": "copy"})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	started := decode[jobResponse](t, w)
	assert.Equal(t, 4, started.TotalFiles)
	assert.Equal(t, 500, started.AdmissionCeiling)
	assert.Equal(t, batch.ModeCopy, started.Mode)

	env.wait(t)

	w = env.do(t, http.MethodGet, "/api/v1/job", nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[jobResponse](t, w)
	assert.Equal(t, batch.StateCompleted, job.State)
	assert.Equal(t, 4, job.Processed)
	assert.Equal(t, 3, job.Stats.Successful)
	assert.Equal(t, 1, job.Stats.Failed)
	assert.Equal(t, "Batch 1 of 1", job.Label)

	w = env.do(t, http.MethodGet, "/api/v1/job/results?outcome=failure", nil)
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[listResultsResponse](t, w)
	require.Len(t, results.Items, 1)
	assert.Equal(t, batch.KindNoMediaTracks, results.Items[0].Kind)
	assert.Equal(t, "broken.mp4", filepath.Base(results.Items[0].Ref.Path))
	assert.Contains(t, results.Items[0].Actions, batch.ActionPickDifferentFile)

	w = env.do(t, http.MethodGet, "/api/v1/media", nil)
	require.Equal(t, http.StatusOK, w.Code)
	media := decode[listMediaResponse](t, w)
	assert.Equal(t, 3, media.Total)
	for _, m := range media.Items {
		assert.Equal(t, started.JobID, m.JobID)
		assert.True(t, strings.HasPrefix(m.Location, env.library.Root()), m.Location)
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	jobs := decode[listJobsResponse](t, w)
	require.Len(t, jobs.Items, 1)
	assert.Equal(t, batch.StateCompleted, jobs.Items[0].State)
	assert.Equal(t, 3, jobs.Items[0].Successful)

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+started.JobID+"/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	evs := decode[listEventsResponse](t, w)
	assert.NotZero(t, evs.Total)
}

func TestStartJob_SecondImportSkipsDuplicates(t *testing.T) {
	env := newTestEnv(t, 500)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "b.mp4")
	body := map[string]any{"paths": []string{dir}, "mode": "reference"}

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/job", body).Code)
	env.wait(t)

	w := env.do(t, http.MethodPost, "/api/v1/job/restart", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env.wait(t)

	job := decode[jobResponse](t, env.do(t, http.MethodGet, "/api/v1/job", nil))
	assert.Equal(t, 2, job.Stats.Duplicates)
	assert.Zero(t, job.Stats.Failed)
	assert.Zero(t, job.Stats.Successful)
}

func TestStartJob_OverCeilingSuggestsBatchMode(t *testing.T) {
	env := newTestEnv(t, 2)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "b.mp4", "c.mp4")

	w := env.do(t, http.MethodPost, "/api/v1/job", map[string]any{"paths": []string{dir}})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	resp := decode[errorResponse](t, w)
	assert.Equal(t, "USE_BATCH_MODE", resp.Code)
	assert.EqualValues(t, 3, resp.Detail["count"])
	assert.EqualValues(t, 2, resp.Detail["ceiling"])
	assert.Equal(t, batch.StateIdle, env.controller.State())
}

func TestStartJob_BadRequests(t *testing.T) {
	env := newTestEnv(t, 500)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4")

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"unknown mode", map[string]any{"paths": []string{dir}, "mode": "move"}, http.StatusBadRequest, "INVALID_SELECTION"},
		{"empty selection", map[string]any{"paths": []string{}}, http.StatusBadRequest, "EMPTY_SELECTION"},
		{"missing path", map[string]any{"paths": []string{filepath.Join(dir, "gone.mp4")}}, http.StatusBadRequest, "PATH_NOT_FOUND"},
		{"folder without grants", map[string]any{"paths": []string{dir}, "mode": "reference", "folder": dir}, http.StatusBadRequest, "INVALID_SELECTION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/job", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			assert.Equal(t, tt.wantErr, decode[errorResponse](t, w).Code)
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/job", strings.NewReader("{"))
		w := httptest.NewRecorder()
		env.mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_JSON", decode[errorResponse](t, w).Code)
	})
}

func TestJobCommands_WithoutJob(t *testing.T) {
	env := newTestEnv(t, 500)

	for _, cmd := range []string{"pause", "resume", "cancel", "restart"} {
		t.Run(cmd, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/job/"+cmd, nil)
			assert.Contains(t, []int{http.StatusNotFound, http.StatusConflict}, w.Code, w.Body.String())
		})
	}

	w := env.do(t, http.MethodGet, "/api/v1/job", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, batch.StateIdle, decode[jobResponse](t, w).State)
}

func TestClearJob(t *testing.T) {
	env := newTestEnv(t, 500)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4")

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/job", map[string]any{"paths": []string{dir}}).Code)
	env.wait(t)

	w := env.do(t, http.MethodDelete, "/api/v1/job", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	job := decode[jobResponse](t, env.do(t, http.MethodGet, "/api/v1/job", nil))
	assert.Equal(t, batch.StateIdle, job.State)
	assert.Zero(t, job.TotalFiles)

	results := decode[listResultsResponse](t, env.do(t, http.MethodGet, "/api/v1/job/results", nil))
	assert.Empty(t, results.Items)
	assert.Zero(t, results.Total)
}

func TestListResults_Pagination(t *testing.T) {
	env := newTestEnv(t, 500)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4", "b.mp4", "c.mp4", "d.mp4", "e.mp4")

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/job", map[string]any{"paths": []string{dir}}).Code)
	env.wait(t)

	resp := decode[listResultsResponse](t, env.do(t, http.MethodGet, "/api/v1/job/results?limit=2&offset=4", nil))
	assert.Equal(t, 5, resp.Total)
	assert.Len(t, resp.Items, 1)

	resp = decode[listResultsResponse](t, env.do(t, http.MethodGet, "/api/v1/job/results?offset=10", nil))
	assert.Empty(t, resp.Items)
}

func TestMedia_GetAndDelete(t *testing.T) {
	env := newTestEnv(t, 500)
	m := &library.Media{ContentHash: "abc123", Title: "Clip", Location: "/x/clip.mp4", SourcePath: "/x/clip.mp4", Mode: "reference"}
	require.NoError(t, env.library.AddMedia(t.Context(), m))

	w := env.do(t, http.MethodGet, "/api/v1/media/"+itoa(m.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Clip", decode[mediaResponse](t, w).Title)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/media/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/media/999", nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/api/v1/media/"+itoa(m.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/v1/media/"+itoa(m.ID), nil).Code)
}

func TestMedia_ListFilters(t *testing.T) {
	env := newTestEnv(t, 500)
	for i, title := range []string{"Alpha", "Beta", "Alphabet"} {
		require.NoError(t, env.library.AddMedia(t.Context(), &library.Media{
			ContentHash: "hash-" + itoa(int64(i)), Title: title, Location: "/x/" + title, SourcePath: "/x/" + title, Mode: "reference",
		}))
	}

	resp := decode[listMediaResponse](t, env.do(t, http.MethodGet, "/api/v1/media?title=Alpha", nil))
	assert.Equal(t, 2, resp.Total)

	resp = decode[listMediaResponse](t, env.do(t, http.MethodGet, "/api/v1/media?limit=1", nil))
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Items, 1)
	assert.Equal(t, 1, resp.Limit)
}

func TestJobSummary_NotFound(t *testing.T) {
	env := newTestEnv(t, 500)
	w := env.do(t, http.MethodGet, "/api/v1/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvents_RequiresEventLog(t *testing.T) {
	env := newTestEnv(t, 500)
	env.server.deps.EventLog = nil

	w := env.do(t, http.MethodGet, "/api/v1/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, 500)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/metrics", nil).Code)

	deps := env.server.deps
	deps.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics\n"))
	})
	srv, err := New(deps)
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics\n", w.Body.String())
}

func TestEngineErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"job active", batch.ErrJobActive, http.StatusConflict, "JOB_ACTIVE"},
		{"invalid transition", batch.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{"no job", batch.ErrNoJob, http.StatusNotFound, "NO_JOB"},
		{"folder denied", &batch.AccessError{Path: "/media", Err: errors.New("permission denied")}, http.StatusForbidden, "FOLDER_ACCESS_DENIED"},
		{"picker crash", errors.New("open /media: too many open files"), http.StatusRequestEntityTooLarge, "USE_BATCH_MODE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			engine := mocks.NewMockEngine(ctrl)
			guard := mocks.NewMockAdmitter(ctrl)

			engine.EXPECT().Pause().Return(tt.err)

			srv, err := New(ServerDeps{Engine: engine, Guard: guard, Library: &library.Store{}, Jobs: &library.JobStore{}, Logger: testLogger()})
			require.NoError(t, err)
			mux := http.NewServeMux()
			srv.RegisterRoutes(mux)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/job/pause", nil))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode[errorResponse](t, w).Code)
		})
	}
}

func TestStartJob_UsesJobContextNotRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockEngine(ctrl)
	guard := mocks.NewMockAdmitter(ctrl)

	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4")
	job := batch.NewJob([]string{filepath.Join(dir, "a.mp4")}, batch.ModeReference, nil)

	jobCtx := t.Context()
	guard.EXPECT().Admit([]string{filepath.Join(dir, "a.mp4")}, batch.ModeReference, nil).Return(job, nil)
	guard.EXPECT().Ceiling().Return(10)
	engine.EXPECT().Start(jobCtx, job).Return(nil)
	engine.EXPECT().Progress().Return(batch.Progress{JobID: job.ID, State: batch.StateProcessing, TotalFiles: 1, TotalBatches: 1, CurrentBatch: 1})
	engine.EXPECT().Job().Return(job)

	srv, err := New(ServerDeps{
		Engine: engine, Guard: guard, Library: &library.Store{}, Jobs: &library.JobStore{},
		DefaultMode: batch.ModeReference, JobContext: jobCtx, Logger: testLogger(),
	})
	require.NoError(t, err)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/job",
		strings.NewReader(`{"paths":["`+filepath.Join(dir, "a.mp4")+`"]}`)))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	resp := decode[jobResponse](t, w)
	assert.Equal(t, job.ID, resp.JobID)
	assert.Equal(t, 10, resp.AdmissionCeiling)
	assert.Equal(t, job.BatchSize, resp.BatchSize)
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t, 500)
	dir := t.TempDir()
	writeFiles(t, dir, "a.mp4")

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/v1/job", map[string]any{"paths": []string{dir}}).Code)
	env.wait(t)

	w := env.do(t, http.MethodGet, "/api/v1/events?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[listEventsResponse](t, w)
	assert.Equal(t, 2, resp.Total)
	// newest first: the job's final event
	assert.Equal(t, "job.finished", resp.Items[0].EventType)
	payload, ok := resp.Items[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", payload["state"])

	w = env.do(t, http.MethodGet, "/api/v1/events?since=2000-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[listEventsResponse](t, w)
	assert.Greater(t, all.Total, 2)
	assert.Equal(t, "job.started", all.Items[0].EventType)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/events?since=yesterday", nil).Code)
}
