package rest

import (
	"sync"
)

var (
	service *Service
	handler *Handler
	hub     *Hub

	serviceOnce sync.Once
	handlerOnce sync.Once
	hubOnce     sync.Once
)

func ProvideService(args *ContainerArgs) *Service {
	serviceOnce.Do(func() {
		service = NewService(args.Orchestrator, args.Library)
	})
	return service
}

// ProvideHub subscribes the progress feed to the bus exactly once.
func ProvideHub(args *ContainerArgs) *Hub {
	hubOnce.Do(func() {
		hub = NewHub()
		hub.Register(args.Bus)
	})
	return hub
}

func ProvideHandler(svc *Service, h *Hub) *Handler {
	handlerOnce.Do(func() {
		handler = &Handler{
			service: svc,
			hub:     h,
		}
	})
	return handler
}
