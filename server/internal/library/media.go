package library

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

// MediaStore is the device side of the library, it owns the audio files.
type MediaStore interface {
	// Place moves src into collection under a name no other item uses and
	// returns its final path. Existing files are never overwritten.
	Place(src string, collection string, id internal.Identifier) (string, error)
	Remove(path string) error
	Exists(path string) bool
}

// DirMedia keeps every collection as a directory below Root.
type DirMedia struct {
	Root string
}

func NewDirMedia(root string) *DirMedia { return &DirMedia{Root: root} }

func (d *DirMedia) Dir(collection string) string {
	return filepath.Join(d.Root, collection)
}

// Path names a file of id placed at the given time, so a replacement never
// lands on the file the current record points to.
func (d *DirMedia) Path(collection string, id internal.Identifier, at time.Time) string {
	return filepath.Join(d.Dir(collection), fmt.Sprintf("%s_%d.mp3", id, at.UnixNano()))
}

func (d *DirMedia) Place(src string, collection string, id internal.Identifier) (string, error) {
	const op = "media place"

	dest := d.Path(collection, id, time.Now())
	if _, err := os.Lstat(dest); err == nil {
		return "", classify(op, fmt.Errorf("%s: %w", dest, fs.ErrExist))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", classify(op, err)
	}

	err := os.Rename(src, dest)
	if errors.Is(err, syscall.EXDEV) {
		err = moveAcross(src, dest)
	}
	if err != nil {
		return "", classify(op, err)
	}

	return dest, nil
}

func (d *DirMedia) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrFileMissing
	}
	return err
}

func (d *DirMedia) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// moveAcross copies src to dest when they live on different volumes.
func moveAcross(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dest + ".incoming"

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Remove(src)
}

// Access denied surfaces as a storage problem, anything else means the
// library could not take the file.
func classify(op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return failure.New(failure.StorageFailure, op, err)
	}
	return failure.New(failure.CommitFailure, op, err)
}
