package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
	"github.com/liquidtune/tunevault/server/internal/pipes"
	"github.com/liquidtune/tunevault/server/sys"
)

const (
	defaultInterval = time.Millisecond * 250
	// sampled progress never reaches 1 until the file is in place
	maxSampled = 0.99
)

// Controller streams audio payloads from the download backend to local files.
type Controller struct {
	client    *http.Client
	baseURL   string
	interval  time.Duration
	freeSpace func(path string) (uint64, error)
}

func NewController(client *http.Client, baseURL string, interval time.Duration) *Controller {
	if client == nil {
		client = http.DefaultClient
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Controller{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		interval:  interval,
		freeSpace: sys.FreeSpace,
	}
}

// A fully transferred file, placed at Path.
type LocalFile struct {
	Path     string
	Size     int64
	Checksum string
}

// Begin starts transferring the payload of id into dest and returns
// immediately. The transfer stops when ctx is done or the handle is cancelled.
func (c *Controller) Begin(ctx context.Context, id internal.Identifier, dest string) *Handle {
	ctx, cancel := context.WithCancel(ctx)

	h := &Handle{
		progress: make(chan float64, 1),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer cancel()
		defer close(h.done)
		defer close(h.progress)

		file, err := c.transfer(ctx, id, dest, h)
		if err != nil {
			slog.Error(
				"transfer failed",
				slog.String("id", id),
				slog.Any("err", err),
			)
			h.err = err
			return
		}

		h.file = file
		h.emit(1)
	}()

	return h
}

func (c *Controller) transfer(ctx context.Context, id internal.Identifier, dest string, h *Handle) (*LocalFile, error) {
	const op = "transfer"

	endpoint := fmt.Sprintf("%s/download-audio/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, failure.New(failure.Unreachable, op, err)
	}

	slog.Info("requesting audio payload", slog.String("id", id), slog.String("dest", dest))

	res, err := c.client.Do(req)
	if err != nil {
		return nil, failure.FromTransport(op, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, failure.FromStatus(op, res.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, failure.FromFile(op, err)
	}

	expected := res.ContentLength
	if expected > 0 {
		free, err := c.freeSpace(filepath.Dir(dest))
		if err != nil {
			slog.Debug("free space probe unavailable", slog.Any("err", err))
		} else if uint64(expected) > free {
			return nil, failure.New(
				failure.StorageFailure,
				op,
				fmt.Errorf("payload needs %d bytes, %d available", expected, free),
			)
		}
	}

	fw, err := pipes.CreateFile(dest)
	if err != nil {
		return nil, failure.FromFile(op, err)
	}
	defer fw.Abort()

	var (
		meter  = &pipes.Meter{}
		digest = pipes.NewDigest()
	)

	r, err := pipes.Chain(res.Body, meter, digest)
	if err != nil {
		return nil, failure.New(failure.Unreachable, op, err)
	}

	var (
		buf     = make([]byte, 32*1024)
		sampled = time.Now()
	)

	h.emit(0)

	for {
		if err := ctx.Err(); err != nil {
			return nil, failure.New(failure.Cancelled, op, err)
		}

		n, rerr := r.Read(buf)
		if n > 0 {
			if _, err := fw.Write(buf[:n]); err != nil {
				return nil, failure.FromFile(op, err)
			}
		}

		if expected > 0 && time.Since(sampled) >= c.interval {
			sampled = time.Now()
			h.emit(min(float64(meter.Count())/float64(expected), maxSampled))
		}

		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return nil, failure.New(failure.Cancelled, op, ctx.Err())
			}
			return nil, failure.New(failure.Unreachable, op, rerr)
		}
	}

	if expected > 0 && meter.Count() != expected {
		return nil, failure.New(
			failure.Unreachable,
			op,
			fmt.Errorf("payload truncated: got %d of %d bytes", meter.Count(), expected),
		)
	}

	// last chance to honour a cancellation before the file becomes visible
	if err := ctx.Err(); err != nil {
		return nil, failure.New(failure.Cancelled, op, err)
	}

	if err := fw.Commit(); err != nil {
		return nil, failure.FromFile(op, err)
	}

	return &LocalFile{
		Path:     dest,
		Size:     meter.Count(),
		Checksum: digest.Sum(),
	}, nil
}
