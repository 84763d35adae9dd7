package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeMediaFiles creates n distinct files under dir and returns their paths.
func writeMediaFiles(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("clip-%04d.mp4", i))
		require.NoError(t, os.WriteFile(paths[i], []byte(fmt.Sprintf("media payload %d", i)), 0644))
	}
	return paths
}

type stubValidator struct {
	err  error
	meta *Metadata
}

func (v stubValidator) Validate(_ context.Context, h *Handle) (*Metadata, error) {
	if v.err != nil {
		return nil, v.err
	}
	if v.meta != nil {
		m := *v.meta
		return &m, nil
	}
	return &Metadata{Size: h.Size}, nil
}

type memStore struct {
	mu      sync.Mutex
	byHash  map[string]int64
	persist func(h *Handle) error
	seen    []string // paths readable at persist time
}

func newMemStore() *memStore {
	return &memStore{byHash: make(map[string]int64)}
}

func (s *memStore) FindDuplicate(_ context.Context, hash string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[hash]
	return id, ok, nil
}

func (s *memStore) Persist(_ context.Context, h *Handle, meta *Metadata, _ Mode) (*Stored, error) {
	if s.persist != nil {
		if err := s.persist(h); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(h.Path); err == nil {
		s.seen = append(s.seen, h.Path)
	}
	id := int64(len(s.byHash) + 1)
	s.byHash[meta.Hash] = id
	return &Stored{ID: id, Location: h.Path}, nil
}

type fakeFolder struct {
	mu       sync.Mutex
	root     string
	acquired int
	released int
	active   int
	maxLive  int
	denied   map[string]bool
	revoked  chan struct{}
}

func newFakeFolder(root string) *fakeFolder {
	return &fakeFolder{root: root, denied: map[string]bool{}, revoked: make(chan struct{})}
}

func (f *fakeFolder) Root() string { return f.root }

func (f *fakeFolder) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired++
	return nil
}

func (f *fakeFolder) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeFolder) Enter(path string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied[path] {
		return nil, os.ErrPermission
	}
	f.active++
	f.maxLive = max(f.maxLive, f.active)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.active--
	}, nil
}

func (f *fakeFolder) Revoked() <-chan struct{} { return f.revoked }

func (f *fakeFolder) counts() (acquired, released, active int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired, f.released, f.active
}
