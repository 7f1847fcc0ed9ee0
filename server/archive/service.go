package archive

import (
	"context"

	"github.com/liquidtune/tunevault/server/internal"
)

const defaultPageSize = 50

type Service struct {
	repository *Repository
}

func NewService(r *Repository) *Service {
	return &Service{repository: r}
}

// Archive stores a finished acquisition, unfinished ones are ignored.
func (s *Service) Archive(ctx context.Context, snap *internal.TaskSnapshot) error {
	if !snap.State.IsFinished() {
		return nil
	}
	return s.repository.Archive(ctx, FromSnapshot(snap))
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Entity, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repository.List(ctx, limit, offset)
}

func (s *Service) Get(ctx context.Context, id string) (*Entity, error) {
	return s.repository.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repository.Delete(ctx, id)
}
