package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/rpc"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/acquisition"
	"github.com/liquidtune/tunevault/server/internal/library"
	"github.com/liquidtune/tunevault/server/internal/transfer"
)

var endpoint string

func TestMain(m *testing.M) {
	root, err := os.MkdirTemp("", "rpc")
	if err != nil {
		panic(err)
	}

	store, err := library.Open(filepath.Join(root, "library.db"), library.NewDirMedia(filepath.Join(root, "media")))
	if err != nil {
		panic(err)
	}

	orch := acquisition.New(acquisition.Options{
		Library:   store,
		Transfers: transfer.NewController(nil, "http://127.0.0.1:1", 0),
		Staging:   filepath.Join(root, "staging"),
	})

	// net/rpc keeps a single default server per process
	if err := rpc.Register(Container(orch, store)); err != nil {
		panic(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(Post))
	endpoint = srv.URL

	code := m.Run()

	srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	orch.Shutdown(ctx)
	cancel()
	store.Close()
	os.RemoveAll(root)

	os.Exit(code)
}

type response struct {
	Id     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  any             `json:"error"`
}

func call(t *testing.T, url, body string) response {
	t.Helper()

	res, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()

	var r response
	require.NoError(t, json.NewDecoder(res.Body).Decode(&r))
	return r
}

func TestPostRunning(t *testing.T) {
	r := call(t, endpoint, `{"id":1,"method":"Service.Running","params":[{}]}`)
	assert.Equal(t, 1, r.Id)
	assert.Nil(t, r.Error)

	var running Running
	require.NoError(t, json.Unmarshal(r.Result, &running))
	assert.Empty(t, running)
}

func TestPostSubmitRejected(t *testing.T) {
	r := call(t, endpoint, `{"id":2,"method":"Service.Submit","params":[{"locator":"nope"}]}`)
	assert.Equal(t, 2, r.Id)
	assert.Contains(t, r.Error, "invalid_locator")
}

func TestPostLibrary(t *testing.T) {
	r := call(t, endpoint, `{"id":3,"method":"Service.Library","params":[{"q":""}]}`)
	assert.Nil(t, r.Error)

	var items []internal.LibraryItem
	require.NoError(t, json.Unmarshal(r.Result, &items))
	assert.Empty(t, items)
}
