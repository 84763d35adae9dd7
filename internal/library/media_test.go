package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMedia(hash, title string) *Media {
	return &Media{
		ContentHash: hash,
		Title:       title,
		Location:    "/library/" + title + ".mkv",
		SourcePath:  "/in/" + title + ".mkv",
		Mode:        "copy",
		SizeBytes:   2048,
		Duration:    90 * time.Second,
		Container:   "matroska,webm",
		JobID:       "job-a",
	}
}

func TestStore_AddAndGetMedia(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	m := sampleMedia("aaaa1111", "Harbor")
	require.NoError(t, store.AddMedia(ctx, m))
	assert.NotZero(t, m.ID)
	assert.False(t, m.AddedAt.IsZero())

	got, err := store.GetMedia(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Harbor", got.Title)
	assert.Equal(t, 90*time.Second, got.Duration)
	assert.Equal(t, "job-a", got.JobID)

	byHash, err := store.GetMediaByHash(ctx, "aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, m.ID, byHash.ID)
}

func TestStore_GetMedia_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	_, err := store.GetMedia(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetMediaByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AddMedia_DuplicateHash(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	require.NoError(t, store.AddMedia(ctx, sampleMedia("samehash", "One")))
	err := store.AddMedia(ctx, sampleMedia("samehash", "Two"))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStore_AddMedia_InvalidMode(t *testing.T) {
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	m := sampleMedia("h1", "Bad")
	m.Mode = "link"
	assert.ErrorIs(t, store.AddMedia(context.Background(), m), ErrConstraint)
}

func TestStore_ListMedia(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	for i, title := range []string{"Beach Day", "Beach Night", "Mountain"} {
		m := sampleMedia(string(rune('a'+i))+"hash", title)
		if title == "Mountain" {
			m.Mode = "reference"
			m.JobID = ""
		}
		require.NoError(t, store.AddMedia(ctx, m))
	}

	all, total, err := store.ListMedia(ctx, MediaFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	beach, total, err := store.ListMedia(ctx, MediaFilter{Title: ptr("Beach")})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, beach, 2)

	refs, _, err := store.ListMedia(ctx, MediaFilter{Mode: ptr("reference")})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Empty(t, refs[0].JobID)

	byJob, _, err := store.ListMedia(ctx, MediaFilter{JobID: ptr("job-a")})
	require.NoError(t, err)
	assert.Len(t, byJob, 2)

	page, total, err := store.ListMedia(ctx, MediaFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 1)
}

func TestStore_DeleteMedia(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	m := sampleMedia("delhash", "Gone")
	require.NoError(t, store.AddMedia(ctx, m))
	require.NoError(t, store.DeleteMedia(ctx, m.ID))
	require.NoError(t, store.DeleteMedia(ctx, m.ID), "delete is idempotent")

	_, err := store.GetMedia(ctx, m.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTx_Rollback(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	m := sampleMedia("txhash", "Rolled Back")
	require.NoError(t, tx.AddMedia(ctx, m))

	got, err := tx.GetMedia(ctx, m.ID)
	require.NoError(t, err, "visible inside the transaction")
	assert.Equal(t, "Rolled Back", got.Title)

	require.NoError(t, tx.Rollback())

	_, err = store.GetMedia(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTx_Commit(t *testing.T) {
	ctx := context.Background()
	store := NewStore(setupTestDB(t), t.TempDir(), testLogger())

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	m := sampleMedia("commit", "Kept")
	require.NoError(t, tx.AddMedia(ctx, m))
	require.NoError(t, tx.Commit())

	_, total, err := store.ListMedia(ctx, MediaFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
