package batch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/media/in/file-%04d.mov", i)
	}
	return out
}

func TestGuard_AdmitAtCeiling(t *testing.T) {
	g := NewGuard(0, testLogger())
	require.Equal(t, DefaultAdmissionCeiling, g.Ceiling())

	job, err := g.Admit(paths(500), ModeCopy, nil)
	require.NoError(t, err)
	assert.Equal(t, 500, job.Total())
	assert.Equal(t, 25, job.BatchSize)
	assert.Equal(t, 2, job.ConcurrencyLimit)
	assert.Equal(t, 20, job.TotalBatches())
	assert.NotEmpty(t, job.ID)
}

func TestGuard_RejectsOverCeiling(t *testing.T) {
	g := NewGuard(500, testLogger())

	job, err := g.Admit(paths(501), ModeCopy, nil)
	require.Error(t, err)
	assert.Nil(t, job)

	var overload *PickerOverloadError
	require.True(t, errors.As(err, &overload))
	assert.Equal(t, 501, overload.Count)
	assert.Equal(t, 500, overload.Ceiling)

	c := Classify(err)
	assert.Equal(t, KindSystemPickerOverload, c.Kind)
	assert.Equal(t, []RecoveryAction{ActionUseBatchMode}, c.Actions)
}

func TestGuard_CustomCeiling(t *testing.T) {
	g := NewGuard(3000, testLogger())

	job, err := g.Admit(paths(3000), ModeReference, nil)
	require.NoError(t, err)
	assert.Equal(t, 40, job.BatchSize)
	assert.Equal(t, 1, job.ConcurrencyLimit)
	assert.Equal(t, 75, job.TotalBatches())
}

func TestGuard_EmptySelection(t *testing.T) {
	job, err := NewGuard(0, testLogger()).Admit(nil, ModeCopy, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, job.Total())
	assert.Equal(t, 0, job.TotalBatches())
}

func TestGuard_ModeAndFolderMustAgree(t *testing.T) {
	g := NewGuard(0, testLogger())

	_, err := g.Admit(paths(2), ModeCopy, newFakeFolder("/media/in"))
	assert.ErrorIs(t, err, ErrInvalidSelection)

	_, err = g.Admit(paths(2), Mode("move"), nil)
	assert.ErrorIs(t, err, ErrInvalidSelection)

	job, err := g.Admit(paths(2), ModeReference, newFakeFolder("/media/in"))
	require.NoError(t, err)
	assert.NotNil(t, job.Folder)
}

func TestGuard_Passes(t *testing.T) {
	g := NewGuard(500, testLogger())

	passes := g.Passes(paths(1201))
	require.Len(t, passes, 3)
	assert.Len(t, passes[0], 500)
	assert.Len(t, passes[1], 500)
	assert.Len(t, passes[2], 201)
	assert.Equal(t, "/media/in/file-0500.mov", passes[1][0])

	assert.Empty(t, g.Passes(nil))
}

func TestGuard_ReferencePathsMustBeInsideFolder(t *testing.T) {
	g := NewGuard(0, testLogger())
	folder := newFakeFolder("/media/in")

	selection := append(paths(3), "/media/other/stray.mov", "/media/in/../escape.mov")
	_, err := g.Admit(selection, ModeReference, folder)
	require.ErrorIs(t, err, ErrInvalidSelection)
	assert.Contains(t, err.Error(), "/media/other/stray.mov")

	_, err = g.Admit([]string{"/media/in"}, ModeReference, folder)
	assert.ErrorIs(t, err, ErrInvalidSelection, "the folder itself is not a file in it")

	job, err := g.Admit(append(paths(2), "/media/in/sub/clip.mov"), ModeReference, folder)
	require.NoError(t, err)
	assert.Equal(t, 3, job.Total())

	_, err = g.Admit([]string{"/anywhere/clip.mov"}, ModeReference, nil)
	assert.NoError(t, err, "no folder means no containment check")
}

func TestJob_BatchBounds(t *testing.T) {
	job := NewJob(paths(110), ModeCopy, nil)
	require.Equal(t, 25, job.BatchSize)
	require.Equal(t, 5, job.TotalBatches())

	lo, hi := job.Batch(0)
	assert.Equal(t, [2]int{0, 25}, [2]int{lo, hi})
	lo, hi = job.Batch(4)
	assert.Equal(t, [2]int{100, 110}, [2]int{lo, hi})

	assert.Equal(t, 42, job.Ref(42).Index)
	assert.Equal(t, "file-0042.mov", job.Ref(42).Name())
}

func TestJob_BatchBoundsLargeSelection(t *testing.T) {
	job := NewJob(paths(1500), ModeCopy, nil)
	require.Equal(t, 35, job.BatchSize)
	require.Equal(t, 1, job.ConcurrencyLimit)
	require.Equal(t, 43, job.TotalBatches())

	lo, hi := job.Batch(41)
	assert.Equal(t, [2]int{1435, 1470}, [2]int{lo, hi})
	lo, hi = job.Batch(42)
	assert.Equal(t, [2]int{1470, 1500}, [2]int{lo, hi})
	assert.Equal(t, 30, hi-lo)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("copy")
	require.NoError(t, err)
	assert.Equal(t, ModeCopy, m)

	m, err = ParseMode("reference_in_place")
	require.NoError(t, err)
	assert.Equal(t, ModeReference, m)

	_, err = ParseMode("symlink")
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestComputeStats(t *testing.T) {
	results := []Result{
		{Outcome: OutcomeSuccess},
		{Outcome: OutcomeSuccess},
		{Outcome: OutcomeDuplicate},
		{Outcome: OutcomeFailure, Kind: KindOversized},
		{Outcome: OutcomeFailure, Kind: KindOversized},
		{Outcome: OutcomeFailure, Kind: KindUnreadable},
	}

	s := ComputeStats(results)
	assert.Equal(t, 6, s.Attempted)
	assert.Equal(t, 2, s.Successful)
	assert.Equal(t, 3, s.Failed)
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, s.Attempted, s.Successful+s.Failed+s.Duplicates)
	assert.Equal(t, 2, s.ByKind[KindOversized])
	assert.Equal(t, 1, s.ByKind[KindUnreadable])
}
