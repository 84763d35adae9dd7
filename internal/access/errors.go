// internal/access/errors.go
package access

import "errors"

var (
	// ErrNotAcquired indicates Enter was called on a folder not acquired.
	ErrNotAcquired = errors.New("folder access not acquired")

	// ErrOutsideFolder indicates a path escapes the granted folder.
	ErrOutsideFolder = errors.New("path is outside the granted folder")

	// ErrRevoked indicates access to the folder was lost.
	ErrRevoked = errors.New("folder access revoked")

	// ErrNotDirectory indicates the granted root is not a directory.
	ErrNotDirectory = errors.New("not a directory")
)
