// internal/library/testutil_test.go
package library

import (
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/vmunix/bulkimport/internal/batch"
)

//go:embed testdata/schema.sql
var testSchema string

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// every pooled connection to :memory: would be a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stagedHandle writes content to a source file and a staged copy of it,
// the way the worker hands copy-mode files to the store.
func stagedHandle(t *testing.T, dir, name, content string) *batch.Handle {
	t.Helper()
	src := filepath.Join(dir, name)
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	staged := filepath.Join(dir, "stage-"+name)
	if err := os.WriteFile(staged, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte(content))
	return &batch.Handle{
		JobID:  "job-1",
		Path:   staged,
		Source: src,
		Size:   int64(len(content)),
		Hash:   hex.EncodeToString(sum[:]),
		Staged: true,
	}
}

func testMetadata(h *batch.Handle, title string) *batch.Metadata {
	return &batch.Metadata{
		Hash:       h.Hash,
		Size:       h.Size,
		Title:      title,
		Container:  "matroska,webm",
		VideoCodec: "h264",
		AudioCodec: "aac",
		Width:      1280,
		Height:     720,
		Channels:   2,
	}
}

func ptr[T any](v T) *T {
	return &v
}
