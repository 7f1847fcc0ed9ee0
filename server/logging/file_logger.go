package logging

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// RotableLogger is an io.Writer over a log file that can be rotated
// while the process keeps writing to it.
type RotableLogger struct {
	path string
	fd   *os.File
	mu   sync.Mutex
	now  func() time.Time
}

func NewRotableLogger(path string) (*RotableLogger, error) {
	fd, err := open(path)
	if err != nil {
		return nil, err
	}

	return &RotableLogger{path: path, fd: fd, now: time.Now}, nil
}

func open(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

func (r *RotableLogger) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fd.Write(p)
}

// Rotate moves the current file aside, suffixed with the current date,
// and starts a fresh one. On failure the logger keeps writing to a
// usable file.
func (r *RotableLogger) Rotate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rotated := fmt.Sprintf("%s.%s", r.path, r.now().Format("2006-01-02T15-04-05"))

	closeErr := r.fd.Close()

	if err := os.Rename(r.path, rotated); err != nil {
		return errors.Join(closeErr, err, r.reopen(r.path))
	}

	if err := r.reopen(r.path); err != nil {
		// keep appending to the file we just moved
		return errors.Join(closeErr, err, r.reopen(rotated))
	}

	return closeErr
}

func (r *RotableLogger) reopen(path string) error {
	fd, err := open(path)
	if err != nil {
		return err
	}
	r.fd = fd
	return nil
}

func (r *RotableLogger) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fd.Close()
}
