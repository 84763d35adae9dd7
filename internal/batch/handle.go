package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Handle is the acquired form of one file: readable bytes on local disk
// plus the content hash computed while acquiring them.
//
// In copy mode Path is a staged copy owned by the handle; Release removes
// it unless the store has already moved it into the library.
type Handle struct {
	Ref    FileRef
	JobID  string
	Path   string // where to read the bytes from
	Source string // the file as selected
	Size   int64
	Hash   string
	Staged bool
}

// Release frees what acquisition allocated. It is safe to call more than once.
func (h *Handle) Release() error {
	if !h.Staged {
		return nil
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged copy: %w", err)
	}
	return nil
}

// ctxReader aborts long copies once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func unreadable(path string, err error) error {
	return &ValidationError{Kind: KindUnreadable, Path: path, Err: err}
}

// acquire makes ref's bytes available for validation. In copy mode the
// file is staged into stagingDir while hashing; otherwise it is hashed in place.
func acquire(ctx context.Context, ref FileRef, mode Mode, stagingDir string, bufs *bufferPool) (*Handle, error) {
	info, err := os.Stat(ref.Path)
	if err != nil {
		return nil, unreadable(ref.Path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, &ValidationError{Kind: KindUnreadable, Path: ref.Path, Detail: "not a regular file"}
	}

	src, err := os.Open(ref.Path)
	if err != nil {
		return nil, unreadable(ref.Path, err)
	}
	defer func() { _ = src.Close() }()

	buf := bufs.get()
	defer bufs.put(buf)

	h := &Handle{Ref: ref, Path: ref.Path, Source: ref.Path}
	hasher := sha256.New()
	in := ctxReader{ctx: ctx, r: src}

	if mode != ModeCopy {
		n, err := io.CopyBuffer(hasher, in, buf)
		if err != nil {
			return nil, unreadable(ref.Path, err)
		}
		h.Size = n
		h.Hash = hex.EncodeToString(hasher.Sum(nil))
		return h, nil
	}

	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	staged, err := os.CreateTemp(stagingDir, "stage-*"+filepath.Ext(ref.Path))
	if err != nil {
		return nil, fmt.Errorf("create staged copy: %w", err)
	}
	h.Path = staged.Name()
	h.Staged = true

	n, err := io.CopyBuffer(io.MultiWriter(staged, hasher), in, buf)
	if err == nil {
		err = staged.Sync()
	}
	if cerr := staged.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = h.Release()
		return nil, unreadable(ref.Path, err)
	}

	h.Size = n
	h.Hash = hex.EncodeToString(hasher.Sum(nil))
	return h, nil
}
