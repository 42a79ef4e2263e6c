package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSink keeps each table in <dir>/<name>.json.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileSink{dir: dir}, nil
}

func (f *FileSink) path(name string) string {
	return filepath.Join(f.dir, name+".json")
}

func (f *FileSink) Load(_ context.Context, name string) ([]byte, error) {
	raw, err := os.ReadFile(f.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoDocument
	}
	return raw, err
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never observe a partial document.
func (f *FileSink) Save(ctx context.Context, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, f.path(name)); err != nil {
		cleanup()
		return err
	}
	return nil
}

func (f *FileSink) Ping(context.Context) error {
	_, err := os.Stat(f.dir)
	return err
}

func (f *FileSink) Close() error { return nil }
