package sink

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// File writes to a path through a temp file and rename, so readers never
// observe a half-written document.
type File struct {
	fs   afero.Fs
	path string
}

// NewFile returns a writer for path on fsys.
func NewFile(fsys afero.Fs, path string) *File {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &File{fs: fsys, path: path}
}

func (f *File) Target() string { return f.path }

func (f *File) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := afero.TempFile(f.fs, dir, ".measurements-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", f.path, err)
	}
	if err := f.fs.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", f.path, err)
	}
	if err := f.fs.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename into %s: %w", f.path, err)
	}
	committed = true
	return nil
}
