package batch

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"syscall"
)

// RecoveryAction is a suggestion shown to the user for a failure.
type RecoveryAction string

const (
	ActionRetry             RecoveryAction = "retry"
	ActionPickDifferentFile RecoveryAction = "pick_different_file"
	ActionCompress          RecoveryAction = "compress"
	ActionUseBatchMode      RecoveryAction = "use_batch_mode"
	ActionContactSupport    RecoveryAction = "contact_support"
)

// Classification is the outcome of mapping an error onto the ErrorKind taxonomy.
type Classification struct {
	Kind      ErrorKind
	Retryable bool
	Actions   []RecoveryAction
}

// Escalates reports whether failures of this kind stop the whole job.
func (k ErrorKind) Escalates() bool {
	return k == KindFolderAccessDenied
}

var guidance = map[ErrorKind]Classification{
	KindOversized:            {Kind: KindOversized, Actions: []RecoveryAction{ActionCompress, ActionPickDifferentFile}},
	KindUndersized:           {Kind: KindUndersized, Actions: []RecoveryAction{ActionPickDifferentFile}},
	KindUnreadable:           {Kind: KindUnreadable, Retryable: true, Actions: []RecoveryAction{ActionRetry, ActionPickDifferentFile}},
	KindNoMediaTracks:        {Kind: KindNoMediaTracks, Actions: []RecoveryAction{ActionPickDifferentFile}},
	KindInvalidDuration:      {Kind: KindInvalidDuration, Actions: []RecoveryAction{ActionPickDifferentFile}},
	KindExtractionFailed:     {Kind: KindExtractionFailed, Retryable: true, Actions: []RecoveryAction{ActionRetry, ActionContactSupport}},
	KindSystemPickerOverload: {Kind: KindSystemPickerOverload, Retryable: true, Actions: []RecoveryAction{ActionUseBatchMode}},
	KindFolderAccessDenied:   {Kind: KindFolderAccessDenied, Retryable: true, Actions: []RecoveryAction{ActionRetry, ActionPickDifferentFile}},
}

// Guidance returns the retry flag and recovery actions for a kind.
func Guidance(k ErrorKind) Classification {
	c, ok := guidance[k]
	if !ok {
		c = guidance[KindExtractionFailed]
	}
	c.Actions = append([]RecoveryAction(nil), c.Actions...)
	return c
}

// Classify maps any failure raised while importing onto the closed taxonomy.
// Persistence failures have no kind of their own and report as extraction_failed.
func Classify(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var accessErr *AccessError
	var overload *PickerOverloadError
	var validation *ValidationError

	switch {
	case errors.As(err, &accessErr):
		return Guidance(KindFolderAccessDenied)
	case errors.As(err, &overload), IsPickerCrash(err):
		return Guidance(KindSystemPickerOverload)
	case errors.As(err, &validation):
		return Guidance(validation.Kind)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return Guidance(KindUnreadable)
	default:
		// ExtractionError, PersistenceError, panics and anything unknown
		return Guidance(KindExtractionFailed)
	}
}

// Crash signatures from file-selection layers that fail on huge selections.
var pickerCrashPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)argument list too long`),
	regexp.MustCompile(`(?i)too many open files`),
	regexp.MustCompile(`(?i)(remote view|view service).*(terminated|interrupted|invalidated)`),
	regexp.MustCompile(`(?i)connection (to service )?(was )?(interrupted|invalidated)`),
	regexp.MustCompile(`(?i)selection (is )?too large`),
}

// IsPickerCrash reports whether err carries a crash signature of the file
// reference source, in which case callers should steer the user to batch mode.
func IsPickerCrash(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.E2BIG) || errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) {
		return true
	}
	msg := err.Error()
	for _, re := range pickerCrashPatterns {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}
