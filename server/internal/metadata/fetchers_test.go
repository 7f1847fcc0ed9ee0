package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidtune/tunevault/server/internal/failure"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video-info/abc123":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"title":"Song","duration":212,"thumbnail":"https://img/abc123.jpg"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), srv.URL+"/")

	info, err := f.Fetch(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, 212.0, info.Duration)
	assert.Equal(t, "abc123", info.VideoId)

	_, err = f.Fetch(context.Background(), "missing")
	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.NotFound, kind)
}
