package archive

import (
	"time"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

// Entity is a finished acquisition as kept in the history.
type Entity struct {
	Id          string                    `json:"id"`
	Identifier  internal.Identifier       `json:"identifier,omitempty"`
	Locator     string                    `json:"locator"`
	Title       string                    `json:"title,omitempty"`
	State       internal.AcquisitionState `json:"state"`
	ErrorKind   failure.Kind              `json:"error_kind,omitempty"`
	Reason      string                    `json:"reason,omitempty"`
	Destination string                    `json:"destination,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	FinishedAt  time.Time                 `json:"finished_at"`
}

func FromSnapshot(s *internal.TaskSnapshot) *Entity {
	e := &Entity{
		Id:          s.Id,
		Identifier:  s.Identifier,
		Locator:     s.Locator,
		State:       s.State,
		ErrorKind:   s.ErrorKind,
		Reason:      s.Reason,
		Destination: s.DestinationPath,
		CreatedAt:   s.CreatedAt,
		FinishedAt:  s.UpdatedAt,
	}
	if s.Info != nil {
		e.Title = s.Info.Title
	}
	return e
}
