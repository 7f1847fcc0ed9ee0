package rpc

import (
	"context"
	"log/slog"
	"slices"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/library"
)

type Service struct {
	orch *acquisition.Orchestrator
	lib  *library.Store
}

type Running []internal.TaskSnapshot

type NoArgs struct{}

type LibraryArgs struct {
	Query      string `json:"q"`
	Collection string `json:"collection"`
}

// Submit starts an acquisition.
// The result is the snapshot of the new task, also when it was rejected.
func (s *Service) Submit(args internal.AcquisitionRequest, result *internal.TaskSnapshot) error {
	slog.Info(
		"acquisition requested",
		slog.String("locator", args.Locator),
		slog.String("source", args.Source),
	)

	task, err := s.orch.Submit(context.Background(), args.Locator)
	*result = *task.Status()
	return err
}

// Cancel stops a fetching acquisition given its task id
func (s *Service) Cancel(args string, result *struct{}) error {
	return s.orch.Cancel(args)
}

// Running retrieves the snapshots of every unfinished acquisition
func (s *Service) Running(args NoArgs, running *Running) error {
	*running = s.orch.Running()
	return nil
}

func (s *Service) Library(args LibraryArgs, items *[]internal.LibraryItem) error {
	*items = slices.Collect(s.lib.List(library.Filter{
		Query:      args.Query,
		Collection: args.Collection,
	}))
	return nil
}
