package storage

import (
	"fmt"
	"os"
)

const dirPattern = "k6-acceptance-data-*"

// Dir is a browser data directory. A directory created by Make is removed
// by Cleanup; a directory given by the user is left alone.
type Dir struct {
	Dir    string
	remove bool
}

// Make uses dir when it is set and otherwise creates a temporary
// directory under tmpDir (the OS default when empty).
func (d *Dir) Make(tmpDir string, dir string) error {
	if dir != "" {
		d.Dir = dir
		return nil
	}

	var err error
	if d.Dir, err = os.MkdirTemp(tmpDir, dirPattern); err != nil {
		return fmt.Errorf("creating a temporary data directory: %w", err)
	}
	d.remove = true

	return nil
}

// Cleanup removes the directory if Make created it.
func (d *Dir) Cleanup() error {
	if !d.remove {
		return nil
	}
	if err := os.RemoveAll(d.Dir); err != nil {
		return fmt.Errorf("removing data directory %q: %w", d.Dir, err)
	}
	d.remove = false

	return nil
}
