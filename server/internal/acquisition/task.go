package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

var ErrNotCancellable = errors.New("acquisition can no longer be cancelled")

// Task is a single acquisition, from locator to library item.
type Task struct {
	id         string
	locator    string
	identifier internal.Identifier

	mu              sync.RWMutex
	state           internal.AcquisitionState
	progress        float64
	destinationPath string
	kind            failure.Kind
	reason          string
	info            *internal.VideoInfo
	createdAt       time.Time
	updatedAt       time.Time

	cancel          context.CancelFunc
	cancelRequested bool

	done chan struct{}
}

func newTask(locator string) *Task {
	now := time.Now()
	return &Task{
		id:        uuid.NewString(),
		locator:   locator,
		state:     internal.StateIdle,
		createdAt: now,
		updatedAt: now,
		done:      make(chan struct{}),
	}
}

func (t *Task) GetId() string                   { return t.id }
func (t *Task) Identifier() internal.Identifier { return t.identifier }

// Done is closed once the task reached Succeeded or Failed.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Status() *internal.TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &internal.TaskSnapshot{
		Id:              t.id,
		Identifier:      t.identifier,
		Locator:         t.locator,
		State:           t.state,
		Progress:        t.progress,
		DestinationPath: t.destinationPath,
		ErrorKind:       t.kind,
		Reason:          t.reason,
		Info:            t.info,
		CreatedAt:       t.createdAt,
		UpdatedAt:       t.updatedAt,
	}
}

func (t *Task) setState(s internal.AcquisitionState) {
	t.mu.Lock()
	t.state = s
	t.updatedAt = time.Now()
	t.mu.Unlock()
}

// setProgress keeps the progress non-decreasing and reports whether it moved.
func (t *Task) setProgress(p float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != internal.StateFetching || p <= t.progress {
		return false
	}
	t.progress = p
	t.updatedAt = time.Now()
	return true
}

func (t *Task) setInfo(info *internal.VideoInfo) {
	t.mu.Lock()
	t.info = info
	t.mu.Unlock()
}

// requestCancel cancels the task while it is still fetching.
func (t *Task) requestCancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != internal.StateFetching {
		return ErrNotCancellable
	}

	t.cancelRequested = true
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// beginCommit moves the task to Committing unless a cancellation won the race.
func (t *Task) beginCommit(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancelRequested || ctx.Err() != nil {
		return false
	}

	t.state = internal.StateCommitting
	t.updatedAt = time.Now()
	return true
}

func (t *Task) succeed(path string) {
	t.mu.Lock()
	t.state = internal.StateSucceeded
	t.progress = 1
	t.destinationPath = path
	t.updatedAt = time.Now()
	t.mu.Unlock()
}

func (t *Task) fail(kind failure.Kind) {
	t.mu.Lock()
	t.state = internal.StateFailed
	t.kind = kind
	t.reason = kind.Reason()
	t.updatedAt = time.Now()
	t.mu.Unlock()
}

func (t *Task) finish() { close(t.done) }

func (t *Task) cancelRequestedOrDone(ctx context.Context) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cancelRequested || ctx.Err() != nil
}
