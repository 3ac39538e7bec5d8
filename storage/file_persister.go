// Package storage writes driver artifacts, such as page snapshots, and
// manages the scratch directories browsers run in.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FilePersister stores a file at path.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// LocalPersister writes files to disk. Relative paths are resolved against
// BaseDir, or the working directory when it is empty.
//
// A file is written to a temporary sibling first and renamed into place, so
// readers never observe a partial snapshot.
type LocalPersister struct {
	BaseDir string
}

// Persist writes data to path, creating missing directories and replacing
// any existing file.
func (l *LocalPersister) Persist(ctx context.Context, path string, data io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("persisting %q: %w", path, err)
	}

	dst := filepath.Clean(path)
	if !filepath.IsAbs(dst) && l.BaseDir != "" {
		dst = filepath.Join(l.BaseDir, dst)
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("creating temporary file in %q: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, data); err != nil {
		return fmt.Errorf("writing %q: %w", dst, err)
	}
	if err = tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("setting mode of %q: %w", dst, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", dst, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("moving snapshot to %q: %w", dst, err)
	}

	return nil
}
