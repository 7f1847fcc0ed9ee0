package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

type fixture struct {
	store   *Store
	media   *DirMedia
	staging string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	media := NewDirMedia(filepath.Join(root, "media"))

	store, err := Open(filepath.Join(root, "library.db"), media)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	staging := filepath.Join(root, "staging")
	require.NoError(t, os.MkdirAll(staging, 0755))

	return &fixture{store: store, media: media, staging: staging}
}

func (f *fixture) stage(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(f.staging, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestUpsertAndGet(t *testing.T) {
	f := setup(t)
	src := f.stage(t, "abc123.part.mp3", "not really audio")

	item, err := f.store.Upsert(context.Background(), "abc123", src, Meta{
		Title:    "Song",
		Duration: 212,
		Checksum: "deadbeef",
	})
	require.NoError(t, err)

	assert.Equal(t, "Song", item.DisplayName)
	assert.Equal(t, internal.DefaultCollection, item.Collection)
	assert.Equal(t, f.media.Dir(internal.DefaultCollection), filepath.Dir(item.FilePath))
	assert.True(t, strings.HasPrefix(filepath.Base(item.FilePath), "abc123_"))
	assert.Equal(t, 212.0, item.DurationSeconds)
	assert.EqualValues(t, len("not really audio"), item.Size)

	assert.FileExists(t, item.FilePath)
	assert.NoFileExists(t, src)

	got, err := f.store.Get("abc123")
	require.NoError(t, err)
	assert.Equal(t, item.FilePath, got.FilePath)
	assert.Equal(t, "deadbeef", got.Checksum)
}

func TestUpsertFallsBackToIdentifier(t *testing.T) {
	f := setup(t)

	item, err := f.store.Upsert(context.Background(), "abc123", f.stage(t, "a", "x"), Meta{})
	require.NoError(t, err)
	assert.Equal(t, "abc123", item.DisplayName)
}

func TestUpsertReplacesPreviousItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, "abc123", f.stage(t, "first", "first"), Meta{Title: "First"})
	require.NoError(t, err)

	_, err = f.store.Upsert(ctx, "abc123", f.stage(t, "second", "second"), Meta{Title: "Second"})
	require.NoError(t, err)

	items := slices.Collect(f.store.List(Filter{}))
	require.Len(t, items, 1)
	assert.Equal(t, "Second", items[0].DisplayName)

	data, err := os.ReadFile(items[0].FilePath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

// spyMedia reads the store while the new file is being placed.
type spyMedia struct {
	*DirMedia
	during func()
}

func (m spyMedia) Place(src, collection string, id internal.Identifier) (string, error) {
	path, err := m.DirMedia.Place(src, collection, id)
	m.during()
	return path, err
}

func TestReplaceNeverTearsCurrentItem(t *testing.T) {
	root := t.TempDir()
	media := NewDirMedia(filepath.Join(root, "media"))

	spy := spyMedia{DirMedia: media}
	store, err := Open(filepath.Join(root, "library.db"), &spy)
	require.NoError(t, err)
	defer store.Close()

	stage := func(content string) string {
		p := filepath.Join(root, content)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}

	spy.during = func() {}
	_, err = store.Upsert(context.Background(), "abc123", stage("OLD"), Meta{Checksum: "old"})
	require.NoError(t, err)

	var seen []byte
	spy.during = func() {
		cur, err := store.Get("abc123")
		require.NoError(t, err)
		assert.Equal(t, "old", cur.Checksum)
		seen, err = os.ReadFile(cur.FilePath)
		require.NoError(t, err)
	}

	_, err = store.Upsert(context.Background(), "abc123", stage("NEW"), Meta{Checksum: "new"})
	require.NoError(t, err)
	assert.Equal(t, "OLD", string(seen))

	cur, err := store.Get("abc123")
	require.NoError(t, err)
	data, err := os.ReadFile(cur.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "new", cur.Checksum)
	assert.Equal(t, "NEW", string(data))
}

func TestFailedRecordWriteKeepsPreviousItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, "abc123", f.stage(t, "old", "OLD"), Meta{Checksum: "old"})
	require.NoError(t, err)

	f.store.marshal = func(any) ([]byte, error) { return nil, errors.New("encoder broke") }

	_, err = f.store.Upsert(ctx, "abc123", f.stage(t, "new", "NEW"), Meta{Checksum: "new"})
	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.CommitFailure, kind)

	cur, err := f.store.Get("abc123")
	require.NoError(t, err)
	assert.Equal(t, "old", cur.Checksum)

	data, err := os.ReadFile(cur.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "OLD", string(data))

	entries, err := os.ReadDir(f.media.Dir(internal.DefaultCollection))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "uncommitted file left behind")
}

func TestUpsertMovesAcrossCollections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.store.Upsert(ctx, "abc123", f.stage(t, "a", "a"), Meta{Collection: "Old"})
	require.NoError(t, err)

	second, err := f.store.Upsert(ctx, "abc123", f.stage(t, "b", "b"), Meta{Collection: "New"})
	require.NoError(t, err)

	assert.NoFileExists(t, first.FilePath)
	assert.FileExists(t, second.FilePath)
}

func TestConcurrentUpsertSameIdentifier(t *testing.T) {
	f := setup(t)

	var wg sync.WaitGroup
	for i := range 8 {
		src := f.stage(t, fmt.Sprintf("src-%d", i), fmt.Sprintf("payload %d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.Upsert(context.Background(), "abc123", src, Meta{Title: fmt.Sprint(i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items := slices.Collect(f.store.List(Filter{}))
	require.Len(t, items, 1)
	assert.FileExists(t, items[0].FilePath)
}

type deniedMedia struct{ err error }

func (d deniedMedia) Place(string, string, internal.Identifier) (string, error) { return "", d.err }
func (d deniedMedia) Remove(string) error                                       { return nil }
func (d deniedMedia) Exists(string) bool                                        { return false }

func TestUpsertMediaRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want failure.Kind
	}{
		{"permission denied", classify("place", os.ErrPermission), failure.StorageFailure},
		{"other failure", errors.New("media store unavailable"), failure.CommitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			store, err := Open(filepath.Join(root, "library.db"), deniedMedia{err: tt.err})
			require.NoError(t, err)
			defer store.Close()

			src := filepath.Join(root, "src")
			require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

			_, err = store.Upsert(context.Background(), "abc123", src, Meta{})
			kind, _ := failure.KindOf(err)
			assert.Equal(t, tt.want, kind)

			assert.Empty(t, slices.Collect(store.List(Filter{})))
		})
	}
}

func TestRemove(t *testing.T) {
	f := setup(t)

	item, err := f.store.Upsert(context.Background(), "abc123", f.stage(t, "a", "a"), Meta{})
	require.NoError(t, err)

	require.NoError(t, f.store.Remove("abc123"))
	assert.NoFileExists(t, item.FilePath)

	_, err = f.store.Get("abc123")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, f.store.Remove("abc123"), ErrNotFound)
}

type stuckMedia struct{ *DirMedia }

func (m stuckMedia) Remove(string) error { return os.ErrPermission }

func TestRemoveKeepsRecordWhenFileStays(t *testing.T) {
	root := t.TempDir()
	media := NewDirMedia(filepath.Join(root, "media"))

	store, err := Open(filepath.Join(root, "library.db"), stuckMedia{media})
	require.NoError(t, err)
	defer store.Close()

	src := filepath.Join(root, "src")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	item, err := store.Upsert(context.Background(), "abc123", src, Meta{})
	require.NoError(t, err)

	err = store.Remove("abc123")
	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.StorageFailure, kind)

	got, err := store.Get("abc123")
	require.NoError(t, err)
	assert.Equal(t, item.FilePath, got.FilePath)
	assert.FileExists(t, got.FilePath)
}

func TestRemoveWithMissingFile(t *testing.T) {
	f := setup(t)

	item, err := f.store.Upsert(context.Background(), "abc123", f.stage(t, "a", "a"), Meta{})
	require.NoError(t, err)
	require.NoError(t, os.Remove(item.FilePath))

	assert.ErrorIs(t, f.store.Remove("abc123"), ErrFileMissing)

	_, err = f.store.Get("abc123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.store.Upsert(ctx, "a1", f.stage(t, "a1", "1"), Meta{Title: "Blue Monday"})
	require.NoError(t, err)
	_, err = f.store.Upsert(ctx, "b2", f.stage(t, "b2", "2"), Meta{Title: "Blue Train", Collection: "Jazz"})
	require.NoError(t, err)
	_, err = f.store.Upsert(ctx, "c3", f.stage(t, "c3", "3"), Meta{Title: "Red"})
	require.NoError(t, err)

	assert.Len(t, slices.Collect(f.store.List(Filter{Query: "blue"})), 2)
	assert.Len(t, slices.Collect(f.store.List(Filter{Collection: "Jazz"})), 1)
	assert.Len(t, slices.Collect(f.store.List(Filter{Query: "blue", Collection: internal.DefaultCollection})), 1)

	// restartable
	seq := f.store.List(Filter{})
	assert.Equal(t, slices.Collect(seq), slices.Collect(seq))

	counts, err := f.store.Collections()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{internal.DefaultCollection: 2, "Jazz": 1}, counts)
}

func TestListStopsEarly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := f.store.Upsert(ctx, id, f.stage(t, id, id), Meta{})
		require.NoError(t, err)
	}

	n := 0
	for range f.store.List(Filter{}) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestReconcile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	gone, err := f.store.Upsert(ctx, "gone", f.stage(t, "gone", "g"), Meta{})
	require.NoError(t, err)
	_, err = f.store.Upsert(ctx, "kept", f.stage(t, "kept", "k"), Meta{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone.FilePath))

	dropped, err := f.store.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	items := slices.Collect(f.store.List(Filter{}))
	require.Len(t, items, 1)
	assert.Equal(t, "kept", items[0].Identifier)
}
