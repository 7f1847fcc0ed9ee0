package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

// Fetcher retrieves the descriptive information the backend holds about a video.
type Fetcher struct {
	client  *http.Client
	baseURL string
}

func NewFetcher(client *http.Client, baseURL string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, id internal.Identifier) (*internal.VideoInfo, error) {
	const op = "video-info"

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		fmt.Sprintf("%s/video-info/%s", f.baseURL, id),
		nil,
	)
	if err != nil {
		return nil, failure.New(failure.Unreachable, op, err)
	}

	slog.Info("retrieving metadata", slog.String("id", id))

	res, err := f.client.Do(req)
	if err != nil {
		return nil, failure.FromTransport(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, failure.FromStatus(op, res.StatusCode)
	}

	var info internal.VideoInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, failure.New(failure.RemoteRejected, op, err)
	}

	if info.VideoId == "" {
		info.VideoId = id
	}

	return &info, nil
}
