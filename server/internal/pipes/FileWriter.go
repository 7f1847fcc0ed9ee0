package pipes

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const partialSuffix = ".part"

// FileWriter writes to a sibling ".part" file and moves it onto Path only
// when Commit succeeds, readers never see a partially written Path.
type FileWriter struct {
	Path string

	file      *os.File
	committed bool
}

func CreateFile(path string) (*FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	file, err := os.Create(path + partialSuffix)
	if err != nil {
		return nil, err
	}

	return &FileWriter{Path: path, file: file}, nil
}

func (f *FileWriter) Write(p []byte) (int, error) { return f.file.Write(p) }

func (f *FileWriter) Commit() error {
	if err := f.file.Sync(); err != nil {
		return errors.Join(errors.New("failed to sync partial file"), err)
	}
	if err := f.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(f.file.Name(), f.Path); err != nil {
		return err
	}
	f.committed = true
	return nil
}

// Abort removes the partial file. It is a no-op after a successful Commit.
func (f *FileWriter) Abort() {
	if f.committed {
		return
	}
	f.file.Close()
	if err := os.Remove(f.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove partial file", slog.String("path", f.file.Name()), slog.Any("err", err))
	}
}
