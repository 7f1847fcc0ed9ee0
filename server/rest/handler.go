package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/failure"
	"github.com/liquidtune/tunevault/server/internal/library"
	middlewares "github.com/liquidtune/tunevault/server/middleware"
)

type Handler struct {
	service *Service
	hub     *Hub
}

func NewHandler(svc *Service, hub *Hub) *Handler {
	return &Handler{service: svc, hub: hub}
}

// ErrorResponse is the body of every rejected acquisition.
type ErrorResponse struct {
	Kind   failure.Kind           `json:"kind"`
	Reason string                 `json:"reason"`
	Task   *internal.TaskSnapshot `json:"task,omitempty"`
}

func ApplyRouter(args *ContainerArgs) func(chi.Router) {
	h := ProvideHandler(ProvideService(args), ProvideHub(args))
	return h.Routes()
}

func (h *Handler) Routes() func(chi.Router) {
	return func(r chi.Router) {
		r.Use(middlewares.ApplyAuthenticationByConfig)

		r.Route("/acquisitions", func(r chi.Router) {
			r.Post("/", h.Submit())
			r.Get("/", h.Running())
			r.Get("/feed", h.Feed())
			r.Get("/{id}", h.Task())
			r.Delete("/{id}", h.Cancel())
		})

		r.Route("/library", func(r chi.Router) {
			r.Get("/", h.Library())
			r.Get("/collections", h.Collections())
			r.Post("/reconcile", h.Reconcile())
			r.Get("/{identifier}", h.LibraryItem())
			r.Delete("/{identifier}", h.RemoveItem())
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var req internal.AcquisitionRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		snap, err := h.service.Submit(r.Context(), req)
		if err != nil {
			kind, ok := failure.KindOf(err)
			if !ok {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, kind.HTTPStatus(), ErrorResponse{
				Kind:   kind,
				Reason: kind.Reason(),
				Task:   snap,
			})
			return
		}

		writeJSON(w, http.StatusAccepted, snap)
	}
}

func (h *Handler) Running() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		res, err := h.service.Running(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Task() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		res, err := h.service.Task(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		err := h.service.Cancel(r.Context(), chi.URLParam(r, "id"))
		switch {
		case errors.Is(err, acquisition.ErrNotCancellable):
			http.Error(w, err.Error(), http.StatusConflict)
		case err != nil:
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusAccepted)
		}
	}
}

func (h *Handler) Feed() http.HandlerFunc {
	return h.hub.Serve
}

func (h *Handler) Library() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		q := r.URL.Query()

		filter := library.Filter{
			Query:      q.Get("q"),
			Collection: q.Get("collection"),
		}
		if since := q.Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				http.Error(w, "since must be RFC3339", http.StatusBadRequest)
				return
			}
			filter.Since = t
		}

		res, err := h.service.Library(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) LibraryItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		res, err := h.service.LibraryItem(r.Context(), chi.URLParam(r, "identifier"))
		if errors.Is(err, library.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) Collections() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		res, err := h.service.Collections(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func (h *Handler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		err := h.service.RemoveItem(r.Context(), chi.URLParam(r, "identifier"))
		switch {
		case errors.Is(err, library.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, library.ErrFileMissing):
			writeJSON(w, http.StatusOK, map[string]bool{"file_missing": true})
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (h *Handler) Reconcile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		n, err := h.service.Reconcile(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]int{"dropped": n})
	}
}
