package settings

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
)

// UsageFunc reports how many bytes the library occupies.
type UsageFunc func() (int64, error)

type Handler struct {
	store *Store
	usage UsageFunc
}

func NewHandler(store *Store, usage UsageFunc) *Handler {
	return &Handler{store: store, usage: usage}
}

func (h *Handler) ApplyRouter() func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.List())
		r.Put("/{key}", h.Update())
	}
}

func (h *Handler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		w.Header().Set("Content-Type", "application/json")

		sections := h.store.Sections()

		if h.usage != nil {
			used, err := h.usage()
			if err != nil {
				slog.Warn("failed to compute library usage", slog.Any("err", err))
			}
			for i := range sections {
				for j := range sections[i].Items {
					if sections[i].Items[j].Key == "storage" {
						sections[i].Items[j].Subtitle = humanize.Bytes(uint64(used)) + " used"
					}
				}
			}
		}

		if err := json.NewEncoder(w).Encode(sections); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		w.Header().Set("Content-Type", "application/json")

		var req struct {
			Value *bool `json:"value"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			http.Error(w, "expected {\"value\": true|false}", http.StatusBadRequest)
			return
		}

		item, err := h.store.SetToggle(chi.URLParam(r, "key"), *req.Value)
		switch {
		case errors.Is(err, ErrUnknownSetting):
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		case errors.Is(err, ErrNotToggle):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if err := json.NewEncoder(w).Encode(item); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
