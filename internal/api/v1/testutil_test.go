package v1

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/bulkimport/internal/batch"
	"github.com/vmunix/bulkimport/internal/events"
	"github.com/vmunix/bulkimport/internal/library"
)

//go:embed testdata/schema.sql
var testSchema string

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nameValidator accepts every file except those with "broken" in the name.
type nameValidator struct{}

func (nameValidator) Validate(_ context.Context, h *batch.Handle) (*batch.Metadata, error) {
	name := filepath.Base(h.Source)
	if strings.Contains(name, "broken") {
		return nil, &batch.ValidationError{Kind: batch.KindNoMediaTracks, Path: h.Source}
	}
	return &batch.Metadata{Title: strings.TrimSuffix(name, filepath.Ext(name))}, nil
}

type testEnv struct {
	server     *Server
	controller *batch.Controller
	library    *library.Store
	jobs       *library.JobStore
	events     *events.EventLog
	mux        *http.ServeMux
}

func newTestEnv(t *testing.T, ceiling int) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	logger := testLogger()

	lib := library.NewStore(db, t.TempDir(), logger)
	jobs := library.NewJobStore(db)
	eventLog := events.NewEventLog(db)
	bus := events.NewBus(eventLog, logger)
	t.Cleanup(func() { _ = bus.Close() })

	ctrl := batch.NewController(batch.Options{
		Validator:  nameValidator{},
		Store:      lib,
		History:    jobs,
		Bus:        bus,
		StagingDir: t.TempDir(),
		Logger:     logger,
	})

	srv, err := New(ServerDeps{
		Engine:     ctrl,
		Guard:      batch.NewGuard(ceiling, logger),
		Library:    lib,
		Jobs:       jobs,
		EventLog:   eventLog,
		Logger:     logger,
		JobContext: t.Context(),
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return &testEnv{server: srv, controller: ctrl, library: lib, jobs: jobs, events: eventLog, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	require.NoError(t, e.controller.Wait(t.Context()))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

// writeFiles creates one file per name under dir with distinct contents.
func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("payload of "+name), 0644))
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
