package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/sys"
)

type Running interface {
	Running() []internal.TaskSnapshot
}

type Library interface {
	Collections() (map[string]int, error)
	Usage() (int64, error)
}

type Status struct {
	Running     int    `json:"running"`
	Fetching    int    `json:"fetching"`
	Committing  int    `json:"committing"`
	Items       int    `json:"items"`
	Collections int    `json:"collections"`
	Usage       int64  `json:"usage"`
	UsageHuman  string `json:"usage_human"`
	FreeSpace   uint64 `json:"free_space"`
}

func ApplyRouter(running Running, lib Library, downloadPath string) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", Handler(running, lib, downloadPath))
	}
}

func Handler(running Running, lib Library, downloadPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var s Status

		for _, t := range running.Running() {
			s.Running++
			switch t.State {
			case internal.StateFetching:
				s.Fetching++
			case internal.StateCommitting:
				s.Committing++
			}
		}

		counts, err := lib.Collections()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, n := range counts {
			s.Items += n
		}
		s.Collections = len(counts)

		if s.Usage, err = lib.Usage(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.UsageHuman = humanize.Bytes(uint64(s.Usage))

		// not every platform reports it
		if free, err := sys.FreeSpace(downloadPath); err == nil {
			s.FreeSpace = free
		} else {
			slog.Debug("free space unavailable", slog.Any("err", err))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	}
}
