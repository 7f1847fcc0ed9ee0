package library

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

type probed struct {
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
}

// probe reads container tags and counts mp3 frames. Unreadable files
// yield an empty result, the payload is never validated here.
func probe(path string) probed {
	var p probed

	f, err := os.Open(path)
	if err != nil {
		return p
	}
	defer f.Close()

	if m, err := tag.ReadFrom(f); err == nil {
		p.Title = m.Title()
		p.Artist = m.Artist()
		p.Album = m.Album()
	} else {
		slog.Debug("no tags found", slog.String("path", path), slog.Any("err", err))
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return p
	}

	p.Duration = mp3Duration(f)
	return p
}

func mp3Duration(r io.Reader) time.Duration {
	var (
		decoder = mp3.NewDecoder(r)
		frame   mp3.Frame
		skipped int
		total   time.Duration
	)

	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			if err == io.EOF {
				break
			}
			return 0
		}
		total += frame.Duration()
	}

	return total
}
