// Package access scopes reference-mode imports to a single folder.
//
// A Folder is acquired once per job and released once. Each file inside it
// is entered for the duration of its processing. Removing, renaming or
// locking down the folder while acquired revokes access.
package access

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Folder is a folder-level access grant.
type Folder struct {
	root string
	log  *slog.Logger

	mu       sync.Mutex
	granted  bool
	revoked  chan struct{}
	isClosed bool // revoked has been closed
	leases   int
	watcher  *fsnotify.Watcher
}

// New returns an unacquired grant for root.
func New(root string, logger *slog.Logger) (*Folder, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve folder: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Folder{
		root:    filepath.Clean(abs),
		log:     logger.With("component", "access", "folder", abs),
		revoked: make(chan struct{}),
	}, nil
}

// Root returns the folder's absolute path.
func (f *Folder) Root() string {
	return f.root
}

// Acquire checks the folder is a readable directory and starts watching it.
// Acquiring an already-acquired folder is a no-op.
func (f *Folder) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.granted {
		return nil
	}
	if err := readable(f.root); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch folder: %w", err)
	}
	if err := w.Add(f.root); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch folder: %w", err)
	}

	f.granted = true
	f.watcher = w
	if f.isClosed {
		f.revoked = make(chan struct{})
		f.isClosed = false
	}
	go f.watch(w)

	f.log.Debug("folder access acquired")
	return nil
}

// Release stops watching and ends the grant. It is safe to call more than once.
func (f *Folder) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.granted {
		return nil
	}
	f.granted = false
	if f.leases > 0 {
		f.log.Warn("folder released with files still entered", "leases", f.leases)
	}
	err := f.watcher.Close()
	f.watcher = nil
	f.log.Debug("folder access released")
	return err
}

// Enter grants access to one file inside the folder. The returned func
// ends it and may be called more than once.
func (f *Folder) Enter(path string) (func(), error) {
	if err := f.contains(path); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.isClosed:
		return nil, ErrRevoked
	case !f.granted:
		return nil, ErrNotAcquired
	}
	f.leases++

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.leases--
			f.mu.Unlock()
		})
	}, nil
}

// Revoked is closed when access to the folder is lost.
func (f *Folder) Revoked() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked
}

// Leases returns how many files are currently entered.
func (f *Folder) Leases() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leases
}

// contains reports whether path lies inside the folder.
func (f *Folder) contains(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutsideFolder, err)
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideFolder, path)
	}
	return nil
}

func (f *Folder) watch(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if f.lost(event) {
				f.revoke(w, event.String())
				return
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			f.log.Warn("folder watch error", "error", err)
		}
	}
}

// lost reports whether event means the folder is gone or unreadable.
func (f *Folder) lost(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != f.root {
		return false
	}
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return true
	case event.Has(fsnotify.Chmod):
		return readable(f.root) != nil
	}
	return false
}

func (f *Folder) revoke(w *fsnotify.Watcher, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher != w || f.isClosed {
		return
	}
	close(f.revoked)
	f.isClosed = true
	f.log.Warn("folder access revoked", "event", reason)
}

func readable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open folder: %w", err)
	}
	defer func() { _ = d.Close() }()
	if _, err := d.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read folder: %w", err)
	}
	return nil
}
