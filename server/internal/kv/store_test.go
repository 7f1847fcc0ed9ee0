package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

type entry struct {
	id      string
	ident   string
	state   internal.AcquisitionState
	locator string
}

func (e *entry) GetId() string                   { return e.id }
func (e *entry) Identifier() internal.Identifier { return e.ident }
func (e *entry) Status() *internal.TaskSnapshot {
	return &internal.TaskSnapshot{Id: e.id, Identifier: e.ident, State: e.state, Locator: e.locator}
}

func TestReserveRejectsSecondHolder(t *testing.T) {
	s := NewStore()

	first := &entry{id: "t1", ident: "abc123"}
	second := &entry{id: "t2", ident: "abc123"}

	require.NoError(t, s.Reserve(first))

	err := s.Reserve(second)
	kind, _ := failure.KindOf(err)
	assert.Equal(t, failure.AlreadyInProgress, kind)

	owner, ok := s.Holder("abc123")
	assert.True(t, ok)
	assert.Equal(t, "t1", owner)

	s.Release(first)
	require.NoError(t, s.Reserve(second))
	assert.Len(t, *s.All(), 1)
}

func TestReleaseOfStaleEntryKeepsOwner(t *testing.T) {
	s := NewStore()

	first := &entry{id: "t1", ident: "abc123"}
	require.NoError(t, s.Reserve(first))

	s.Release(&entry{id: "other", ident: "abc123"})

	_, ok := s.Holder("abc123")
	assert.True(t, ok)

	_, err := s.Get("t1")
	assert.NoError(t, err)
}

func TestPersistRestore(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()

	require.NoError(t, s.Reserve(&entry{
		id:      "t1",
		ident:   "abc123",
		state:   internal.StateFetching,
		locator: "https://youtu.be/abc123",
	}))
	require.NoError(t, s.Reserve(&entry{
		id:    "t2",
		ident: "def456",
		state: internal.StateSucceeded,
	}))

	require.NoError(t, s.Persist(dir))

	assert.Equal(t, []string{"https://youtu.be/abc123"}, Restore(dir))
	assert.Empty(t, Restore(dir), "session must be consumed once")
}
