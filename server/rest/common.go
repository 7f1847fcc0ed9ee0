package rest

import (
	"github.com/asaskevich/EventBus"

	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/library"
)

type ContainerArgs struct {
	Orchestrator *acquisition.Orchestrator
	Library      *library.Store
	Bus          EventBus.BusSubscriber
}
