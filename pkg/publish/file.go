package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/newtron-network/routewatch/pkg/model"
)

// DefaultFile is where the snapshot document is written by default.
const DefaultFile = "result/tmp.json"

// FileSink writes the snapshot document to a file. The file is replaced
// atomically, so readers never see a partial document.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink writing to path.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultFile
	}
	return &FileSink{Path: path}
}

func (f *FileSink) Name() string { return "file" }

func (f *FileSink) Publish(_ context.Context, s *model.Snapshot) error {
	return WriteFile(f.Path, s)
}

func (f *FileSink) Close() error { return nil }

// WriteFile atomically replaces path with the encoded snapshot.
func WriteFile(path string, s *model.Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename to %s: %w", path, err)
	}
	return nil
}
