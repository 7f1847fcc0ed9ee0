package rpc

import (
	"github.com/go-chi/chi/v5"

	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/library"
	middlewares "github.com/liquidtune/tunevault/server/middleware"
)

// Dependency injection container.
func Container(orch *acquisition.Orchestrator, lib *library.Store) *Service {
	return &Service{
		orch: orch,
		lib:  lib,
	}
}

// RPC service must be registered before applying this router!
func ApplyRouter() func(chi.Router) {
	return func(r chi.Router) {
		r.Use(middlewares.ApplyAuthenticationByConfig)
		r.Get("/ws", WebSocket)
		r.Post("/http", Post)
	}
}
