package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_ReferenceHashesInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0644))

	h, err := acquire(context.Background(), FileRef{Path: src}, ModeReference, "", newBufferPool())
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(sum[:]), h.Hash)
	assert.Equal(t, int64(5), h.Size)
	assert.Equal(t, src, h.Path)
	assert.False(t, h.Staged)
	require.NoError(t, h.Release())
	assert.FileExists(t, src, "release must never touch a referenced file")
}

func TestAcquire_CopyStagesAndReleaseRemoves(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	src := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	h, err := acquire(context.Background(), FileRef{Path: src}, ModeCopy, staging, newBufferPool())
	require.NoError(t, err)
	assert.True(t, h.Staged)
	assert.NotEqual(t, src, h.Path)
	assert.Equal(t, ".mp4", filepath.Ext(h.Path))

	data, err := os.ReadFile(h.Path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, h.Release())
	assert.NoFileExists(t, h.Path)
	require.NoError(t, h.Release(), "second release is a no-op")
	assert.FileExists(t, src)
}

func TestAcquire_Missing(t *testing.T) {
	_, err := acquire(context.Background(), FileRef{Path: "/nonexistent/file.mp4"}, ModeReference, "", newBufferPool())
	require.Error(t, err)

	var v *ValidationError
	require.True(t, errors.As(err, &v))
	assert.Equal(t, KindUnreadable, v.Kind)
}

func TestAcquire_Directory(t *testing.T) {
	_, err := acquire(context.Background(), FileRef{Path: t.TempDir()}, ModeReference, "", newBufferPool())
	assert.Equal(t, KindUnreadable, Classify(err).Kind)
}

func TestAcquire_CancelledContextLeavesNoStagedCopy(t *testing.T) {
	dir := t.TempDir()
	staging := filepath.Join(dir, "staging")
	src := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := acquire(ctx, FileRef{Path: src}, ModeCopy, staging, newBufferPool())
	require.Error(t, err)

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBufferPool_Drain(t *testing.T) {
	p := newBufferPool()
	a, b := p.get(), p.get()
	assert.Equal(t, 2, p.Outstanding())
	p.put(a)
	p.put(b)
	assert.Equal(t, 0, p.Outstanding())

	assert.Equal(t, 2, p.Drain())
	assert.Equal(t, 0, p.Drain())
}
