package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
	"github.com/liquidtune/tunevault/server/internal/kv"
	"github.com/liquidtune/tunevault/server/internal/library"
	"github.com/liquidtune/tunevault/server/internal/locator"
	"github.com/liquidtune/tunevault/server/internal/transfer"
)

const (
	TopicUpdated  = "acquisition:updated"
	TopicFinished = "acquisition:finished"
)

const infoTimeout = time.Second * 10

type Library interface {
	Upsert(ctx context.Context, id internal.Identifier, src string, meta library.Meta) (*internal.LibraryItem, error)
}

type Transfers interface {
	Begin(ctx context.Context, id internal.Identifier, dest string) *transfer.Handle
}

type InfoFetcher interface {
	Fetch(ctx context.Context, id internal.Identifier) (*internal.VideoInfo, error)
}

type Options struct {
	Library   Library
	Transfers Transfers
	// optional, tasks commit without backend info when nil
	Info     InfoFetcher
	Registry *kv.Store
	Bus      EventBus.BusPublisher

	// upper bound of concurrent transfers
	MaxParallel int
	// directory receiving the files while they are transferred
	Staging    string
	Collection string
}

// Orchestrator drives acquisitions through
// Validating -> Fetching -> Committing -> Succeeded | Failed.
type Orchestrator struct {
	library    Library
	transfers  Transfers
	info       InfoFetcher
	registry   *kv.Store
	bus        EventBus.BusPublisher
	slots      *semaphore.Weighted
	staging    string
	collection string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(o Options) *Orchestrator {
	if o.MaxParallel <= 0 {
		o.MaxParallel = 2
	}
	if o.Registry == nil {
		o.Registry = kv.NewStore()
	}
	if o.Bus == nil {
		o.Bus = EventBus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		library:    o.Library,
		transfers:  o.Transfers,
		info:       o.Info,
		registry:   o.Registry,
		bus:        o.Bus,
		slots:      semaphore.NewWeighted(int64(o.MaxParallel)),
		staging:    o.Staging,
		collection: o.Collection,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Submit validates locator and starts the acquisition in the background.
// A task is always returned, when err is not nil it is already Failed with
// the kind carried by err.
func (o *Orchestrator) Submit(ctx context.Context, loc string) (*Task, error) {
	t := newTask(loc)
	t.setState(internal.StateValidating)

	if err := o.ctx.Err(); err != nil {
		return t, o.reject(t, failure.New(failure.Cancelled, "submit", err))
	}
	if err := ctx.Err(); err != nil {
		return t, o.reject(t, failure.New(failure.Cancelled, "submit", err))
	}

	id, ok := locator.ExtractIdentifier(loc)
	if !ok {
		return t, o.reject(t, failure.New(
			failure.InvalidLocator,
			"validate",
			fmt.Errorf("no identifier in %q", loc),
		))
	}
	t.identifier = id

	if err := o.registry.Reserve(t); err != nil {
		return t, o.reject(t, err)
	}

	taskCtx, cancel := context.WithCancel(o.ctx)

	t.mu.Lock()
	t.cancel = cancel
	t.state = internal.StateFetching
	t.updatedAt = time.Now()
	t.mu.Unlock()

	slog.Info(
		"acquisition accepted",
		slog.String("task", t.id),
		slog.String("id", id),
	)

	o.publish(TopicUpdated, t)

	o.wg.Add(1)
	go o.run(taskCtx, t)

	return t, nil
}

func (o *Orchestrator) run(ctx context.Context, t *Task) {
	defer o.wg.Done()
	defer t.cancel()

	if err := o.slots.Acquire(ctx, 1); err != nil {
		o.finishFailed(t, failure.New(failure.Cancelled, "queue", err))
		return
	}
	defer o.slots.Release(1)

	dest := filepath.Join(
		o.staging,
		fmt.Sprintf("%s_%d.mp3", t.identifier, time.Now().UnixNano()),
	)

	var (
		file *transfer.LocalFile
		info *internal.VideoInfo
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h := o.transfers.Begin(gctx, t.identifier, dest)
		for p := range h.Progress() {
			if t.setProgress(p) {
				o.publish(TopicUpdated, t)
			}
		}
		f, err := h.Await()
		file = f
		return err
	})

	if o.info != nil {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(gctx, infoTimeout)
			defer cancel()

			i, err := o.info.Fetch(ictx, t.identifier)
			if err != nil {
				slog.Warn(
					"video info unavailable",
					slog.String("id", t.identifier),
					slog.Any("err", err),
				)
				return nil
			}
			info = i
			t.setInfo(i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if t.cancelRequestedOrDone(ctx) {
			err = failure.New(failure.Cancelled, "fetch", err)
		}
		o.finishFailed(t, err)
		return
	}

	if !t.beginCommit(ctx) {
		discard(file.Path)
		o.finishFailed(t, failure.New(failure.Cancelled, "fetch", context.Canceled))
		return
	}
	o.publish(TopicUpdated, t)

	meta := library.Meta{
		Checksum:   file.Checksum,
		Collection: o.collection,
	}
	if info != nil {
		meta.Title = info.Title
		meta.Duration = info.Duration
		meta.Thumbnail = info.Thumbnail
	}

	// committing is never interrupted, neither by Cancel nor by shutdown
	item, err := o.library.Upsert(context.WithoutCancel(ctx), t.identifier, file.Path, meta)
	if err != nil {
		discard(file.Path)
		if kind, _ := failure.KindOf(err); kind != failure.StorageFailure {
			err = failure.New(failure.CommitFailure, "commit", err)
		}
		o.finishFailed(t, err)
		return
	}

	t.succeed(item.FilePath)
	o.registry.Release(t)
	defer t.finish()

	slog.Info(
		"acquisition succeeded",
		slog.String("task", t.id),
		slog.String("id", t.identifier),
		slog.String("path", item.FilePath),
	)

	o.publish(TopicFinished, t)
}

// reject fails a task that never reached Fetching.
func (o *Orchestrator) reject(t *Task, err error) error {
	o.finishFailed(t, err)
	return err
}

func (o *Orchestrator) finishFailed(t *Task, err error) {
	kind, ok := failure.KindOf(err)
	if !ok {
		kind = failure.CommitFailure
	}

	t.fail(kind)
	o.registry.Release(t)
	defer t.finish()

	slog.Error(
		"acquisition failed",
		slog.String("task", t.id),
		slog.String("id", t.identifier),
		slog.String("kind", string(kind)),
		slog.Any("err", err),
	)

	o.publish(TopicFinished, t)
}

func (o *Orchestrator) publish(topic string, t *Task) {
	o.bus.Publish(topic, *t.Status())
}

// Cancel stops a task that is still fetching. Tasks already committing
// or finished report ErrNotCancellable.
func (o *Orchestrator) Cancel(taskID string) error {
	e, err := o.registry.Get(taskID)
	if err != nil {
		return err
	}

	t, ok := e.(*Task)
	if !ok {
		return fmt.Errorf("unexpected registry entry for %s", taskID)
	}

	if err := t.requestCancel(); err != nil {
		return err
	}

	slog.Info("acquisition cancel requested", slog.String("task", taskID))
	return nil
}

func (o *Orchestrator) Get(taskID string) (*internal.TaskSnapshot, error) {
	e, err := o.registry.Get(taskID)
	if err != nil {
		return nil, err
	}
	return e.Status(), nil
}

// Running returns the snapshots of every acquisition not yet finished.
func (o *Orchestrator) Running() []internal.TaskSnapshot {
	return *o.registry.All()
}

// Shutdown cancels every fetching task and waits for all of them to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("acquisitions still running"), ctx.Err())
	}
}

func discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to discard fetched file", slog.String("path", path), slog.Any("err", err))
	}
}
