package rest

import (
	"context"
	"iter"
	"log/slog"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/library"
)

type Acquirer interface {
	Submit(ctx context.Context, locator string) (*acquisition.Task, error)
	Cancel(taskID string) error
	Get(taskID string) (*internal.TaskSnapshot, error)
	Running() []internal.TaskSnapshot
}

type Library interface {
	Get(id internal.Identifier) (*internal.LibraryItem, error)
	List(filter library.Filter) iter.Seq[internal.LibraryItem]
	Collections() (map[string]int, error)
	Remove(id internal.Identifier) error
	Reconcile(ctx context.Context) (int, error)
}

type Service struct {
	acquirer Acquirer
	library  Library
}

func NewService(a Acquirer, l Library) *Service {
	return &Service{
		acquirer: a,
		library:  l,
	}
}

func (s *Service) Submit(ctx context.Context, req internal.AcquisitionRequest) (*internal.TaskSnapshot, error) {
	slog.Info(
		"acquisition requested",
		slog.String("locator", req.Locator),
		slog.String("source", req.Source),
	)

	task, err := s.acquirer.Submit(ctx, req.Locator)
	return task.Status(), err
}

func (s *Service) Cancel(ctx context.Context, taskID string) error {
	return s.acquirer.Cancel(taskID)
}

func (s *Service) Task(ctx context.Context, taskID string) (*internal.TaskSnapshot, error) {
	return s.acquirer.Get(taskID)
}

func (s *Service) Running(ctx context.Context) (*[]internal.TaskSnapshot, error) {
	select {
	case <-ctx.Done():
		return nil, context.Canceled
	default:
		running := s.acquirer.Running()
		return &running, nil
	}
}

func (s *Service) Library(ctx context.Context, filter library.Filter) ([]internal.LibraryItem, error) {
	items := []internal.LibraryItem{}

	for item := range s.library.List(filter) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func (s *Service) LibraryItem(ctx context.Context, id internal.Identifier) (*internal.LibraryItem, error) {
	return s.library.Get(id)
}

func (s *Service) Collections(ctx context.Context) (map[string]int, error) {
	return s.library.Collections()
}

func (s *Service) RemoveItem(ctx context.Context, id internal.Identifier) error {
	return s.library.Remove(id)
}

func (s *Service) Reconcile(ctx context.Context) (int, error) {
	return s.library.Reconcile(ctx)
}
