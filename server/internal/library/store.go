package library

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"

	bolt "go.etcd.io/bbolt"
)

var bucket = []byte("library")

var (
	ErrNotFound    = errors.New("library item not found")
	ErrFileMissing = errors.New("library file already missing")
)

// What the caller knows about a freshly transferred file.
type Meta struct {
	Title      string
	Duration   float64
	Thumbnail  string
	Checksum   string
	Collection string
}

type Filter struct {
	// case insensitive match on name, artist or album
	Query      string
	Collection string
	Since      time.Time
}

func (f Filter) match(item *internal.LibraryItem) bool {
	if f.Collection != "" && item.Collection != f.Collection {
		return false
	}
	if !f.Since.IsZero() && item.AcquiredAt.Before(f.Since) {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(item.DisplayName), q) ||
		strings.Contains(strings.ToLower(item.Artist), q) ||
		strings.Contains(strings.ToLower(item.Album), q)
}

// Store is the durable index of acquired items, one per identifier.
// Upsert is the only way to add or replace an item.
type Store struct {
	db      *bolt.DB
	media   MediaStore
	locks   *keyedMutex
	marshal func(v any) ([]byte, error)
}

func Open(path string, media MediaStore) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second * 5})
	if err != nil {
		return nil, errors.Join(errors.New("failed to open library database"), err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		media:   media,
		locks:   newKeyedMutex(),
		marshal: json.Marshal,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Upsert moves src into the library and records it under id, replacing any
// previous item with the same id. Concurrent calls for the same id are
// serialized, the last one wins.
func (s *Store) Upsert(ctx context.Context, id internal.Identifier, src string, meta Meta) (*internal.LibraryItem, error) {
	const op = "library upsert"

	unlock := s.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, failure.New(failure.CommitFailure, op, err)
	}

	stat, err := os.Stat(src)
	if err != nil {
		return nil, failure.New(failure.CommitFailure, op, err)
	}

	tags := probe(src)

	item := internal.LibraryItem{
		Identifier:      id,
		DisplayName:     cmp.Or(tags.Title, meta.Title, id),
		Artist:          tags.Artist,
		Album:           tags.Album,
		Collection:      cmp.Or(meta.Collection, internal.DefaultCollection),
		DurationSeconds: meta.Duration,
		Size:            stat.Size(),
		Checksum:        meta.Checksum,
		Thumbnail:       meta.Thumbnail,
		AcquiredAt:      time.Now(),
	}

	if tags.Duration > 0 {
		item.DurationSeconds = tags.Duration.Seconds()
	}

	// the new file gets its own name, the previous one stays untouched
	// until the record pointing at the new one is committed
	path, err := s.media.Place(src, item.Collection, id)
	if err != nil {
		if _, ok := failure.KindOf(err); ok {
			return nil, err
		}
		return nil, failure.New(failure.CommitFailure, op, err)
	}
	item.FilePath = path

	var previous *internal.LibraryItem

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)

		if v := b.Get([]byte(id)); v != nil {
			var p internal.LibraryItem
			if err := json.Unmarshal(v, &p); err == nil {
				previous = &p
			}
		}

		data, err := s.marshal(item)
		if err != nil {
			return err
		}

		return b.Put([]byte(id), data)
	})
	if err != nil {
		if rerr := s.media.Remove(path); rerr != nil && !errors.Is(rerr, ErrFileMissing) {
			slog.Warn(
				"failed to remove uncommitted library file",
				slog.String("path", path),
				slog.Any("err", rerr),
			)
		}
		return nil, failure.New(failure.CommitFailure, op, err)
	}

	if previous != nil && previous.FilePath != item.FilePath {
		if err := s.media.Remove(previous.FilePath); err != nil && !errors.Is(err, ErrFileMissing) {
			slog.Warn(
				"failed to remove replaced library file",
				slog.String("path", previous.FilePath),
				slog.Any("err", err),
			)
		}
	}

	slog.Info(
		"library item committed",
		slog.String("id", id),
		slog.String("path", item.FilePath),
	)

	return &item, nil
}

func (s *Store) Get(id internal.Identifier) (*internal.LibraryItem, error) {
	var item internal.LibraryItem

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// List yields the items matching filter, newest first. Every iteration
// reads a consistent snapshot, so the sequence can be ranged over again.
func (s *Store) List(filter Filter) iter.Seq[internal.LibraryItem] {
	return func(yield func(internal.LibraryItem) bool) {
		items, err := s.snapshot(filter)
		if err != nil {
			slog.Error("failed to read library", slog.Any("err", err))
			return
		}

		for _, item := range items {
			if !yield(item) {
				return
			}
		}
	}
}

func (s *Store) snapshot(filter Filter) ([]internal.LibraryItem, error) {
	var items []internal.LibraryItem

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var item internal.LibraryItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			if filter.match(&item) {
				items = append(items, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(items, func(a, b internal.LibraryItem) int {
		if c := b.AcquiredAt.Compare(a.AcquiredAt); c != 0 {
			return c
		}
		return strings.Compare(a.Identifier, b.Identifier)
	})

	return items, nil
}

// Collections counts the items of every collection.
func (s *Store) Collections() (map[string]int, error) {
	items, err := s.snapshot(Filter{})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Collection]++
	}

	return counts, nil
}

// Usage sums the size of every item.
func (s *Store) Usage() (int64, error) {
	items, err := s.snapshot(Filter{})
	if err != nil {
		return 0, err
	}

	var total int64
	for _, item := range items {
		total += item.Size
	}
	return total, nil
}

// Remove deletes the item and its file. When the file was already gone the
// record is still removed and ErrFileMissing is returned. When the file
// cannot be removed the record is kept.
func (s *Store) Remove(id internal.Identifier) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	missing := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)

		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}

		var item internal.LibraryItem
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}

		if err := s.media.Remove(item.FilePath); err != nil {
			if !errors.Is(err, ErrFileMissing) {
				return failure.New(failure.StorageFailure, "library remove", err)
			}
			missing = true
		}

		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}

	if missing {
		slog.Warn("removed library item without file", slog.String("id", id))
		return ErrFileMissing
	}

	slog.Info("library item removed", slog.String("id", id))
	return nil
}

// Reconcile drops the items whose file disappeared from the media store
// and returns how many were dropped.
func (s *Store) Reconcile(ctx context.Context) (int, error) {
	items, err := s.snapshot(Filter{})
	if err != nil {
		return 0, err
	}

	dropped := 0

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return dropped, err
		}
		if s.media.Exists(item.FilePath) {
			continue
		}

		ok, err := s.dropIfMissing(item.Identifier)
		if err != nil {
			return dropped, err
		}
		if ok {
			dropped++
		}
	}

	if dropped > 0 {
		slog.Info("library reconciled", slog.Int("dropped", dropped))
	}

	return dropped, nil
}

func (s *Store) dropIfMissing(id internal.Identifier) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	dropped := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)

		v := b.Get([]byte(id))
		if v == nil {
			return nil
		}

		var item internal.LibraryItem
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		// recommitted in the meantime
		if s.media.Exists(item.FilePath) {
			return nil
		}

		dropped = true
		return b.Delete([]byte(id))
	})

	return dropped, err
}
