package archiver

import (
	"context"
	"log/slog"

	"github.com/asaskevich/EventBus"

	"github.com/liquidtune/tunevault/server/archive"
	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
)

type Message = internal.TaskSnapshot

// Archiver moves finished acquisitions into the history database.
type Archiver struct {
	ch      chan Message
	done    chan struct{}
	service *archive.Service
}

func New(s *archive.Service) *Archiver {
	return &Archiver{
		ch:      make(chan Message, 32),
		done:    make(chan struct{}),
		service: s,
	}
}

// Register subscribes the archiver to finished acquisitions.
func (a *Archiver) Register(bus EventBus.BusSubscriber) error {
	return bus.Subscribe(acquisition.TopicFinished, a.Publish)
}

// Publish queues m. Once Run has returned, messages are dropped so that
// publishers are never blocked.
func (a *Archiver) Publish(m Message) {
	select {
	case a.ch <- m:
	case <-a.done:
		slog.Warn("archiver stopped, acquisition not archived", slog.String("task", m.Id))
	}
}

// Done is closed once Run has returned.
func (a *Archiver) Done() <-chan struct{} { return a.done }

// Run consumes messages until ctx is done, then drains what is still queued.
// It must be stopped only after the last acquisition finished.
func (a *Archiver) Run(ctx context.Context) {
	defer close(a.done)

	for {
		select {
		case m := <-a.ch:
			a.archive(m)
		case <-ctx.Done():
			for {
				select {
				case m := <-a.ch:
					a.archive(m)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) archive(m Message) {
	slog.Info(
		"archiving finished acquisition",
		slog.String("task", m.Id),
		slog.String("state", string(m.State)),
	)

	if err := a.service.Archive(context.Background(), &m); err != nil {
		slog.Error("failed to archive acquisition", slog.String("task", m.Id), slog.Any("err", err))
	}
}
