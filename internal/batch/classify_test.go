package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ErrorKind
		retryable bool
	}{
		{"oversized", &ValidationError{Kind: KindOversized, Path: "a.mp4"}, KindOversized, false},
		{"undersized", &ValidationError{Kind: KindUndersized, Path: "a.mp4"}, KindUndersized, false},
		{"no tracks", &ValidationError{Kind: KindNoMediaTracks, Path: "a.txt"}, KindNoMediaTracks, false},
		{"bad duration", &ValidationError{Kind: KindInvalidDuration, Path: "a.mp4"}, KindInvalidDuration, false},
		{"unreadable", &ValidationError{Kind: KindUnreadable, Path: "a.mp4"}, KindUnreadable, true},
		{"extraction", &ExtractionError{Path: "a.mp4", Err: errors.New("bad json")}, KindExtractionFailed, true},
		{"persistence", &PersistenceError{Path: "a.mp4", Err: errors.New("disk full")}, KindExtractionFailed, true},
		{"access", &AccessError{Path: "/x", Err: fs.ErrPermission}, KindFolderAccessDenied, true},
		{"overload", &PickerOverloadError{Count: 600, Ceiling: 500}, KindSystemPickerOverload, true},
		{"timeout", fmt.Errorf("probe: %w", context.DeadlineExceeded), KindUnreadable, true},
		{"missing", fmt.Errorf("open: %w", fs.ErrNotExist), KindUnreadable, true},
		{"denied", fmt.Errorf("open: %w", fs.ErrPermission), KindUnreadable, true},
		{"unknown", errors.New("something odd"), KindExtractionFailed, true},
		{"panic", fmt.Errorf("%w: boom", ErrWorkerPanic), KindExtractionFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.err)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.retryable, c.Retryable)
			assert.NotEmpty(t, c.Actions)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Equal(t, Classification{}, Classify(nil))
}

func TestClassify_AccessWinsOverWrappedCause(t *testing.T) {
	err := &AccessError{Path: "/x", Err: fmt.Errorf("stat: %w", fs.ErrNotExist)}
	assert.Equal(t, KindFolderAccessDenied, Classify(err).Kind)
}

func TestGuidance_Actions(t *testing.T) {
	assert.Equal(t, []RecoveryAction{ActionUseBatchMode}, Guidance(KindSystemPickerOverload).Actions)
	assert.Contains(t, Guidance(KindOversized).Actions, ActionCompress)
	assert.Contains(t, Guidance(KindExtractionFailed).Actions, ActionContactSupport)

	// Callers may not mutate the shared table
	a := Guidance(KindOversized)
	a.Actions[0] = ActionRetry
	assert.Equal(t, ActionCompress, Guidance(KindOversized).Actions[0])
}

func TestGuidance_CoversEveryKind(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, k, Guidance(k).Kind, "kind %s", k)
	}
}

func TestErrorKind_Escalates(t *testing.T) {
	for _, k := range Kinds {
		assert.Equal(t, k == KindFolderAccessDenied, k.Escalates(), "kind %s", k)
	}
}

func TestIsPickerCrash(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("fork/exec /bin/sh: argument list too long"), true},
		{errors.New("open /media/x.mp4: too many open files"), true},
		{errors.New("The remote view service terminated unexpectedly"), true},
		{errors.New("connection to service was interrupted"), true},
		{fmt.Errorf("walk: %w", syscall.EMFILE), true},
		{fmt.Errorf("exec: %w", syscall.E2BIG), true},
		{errors.New("permission denied"), false},
		{nil, false},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPickerCrash(tt.err))
		})
	}
}

func TestIsPickerCrash_ClassifiesAsOverload(t *testing.T) {
	c := Classify(errors.New("too many open files"))
	assert.Equal(t, KindSystemPickerOverload, c.Kind)
	assert.Equal(t, []RecoveryAction{ActionUseBatchMode}, c.Actions)
}
