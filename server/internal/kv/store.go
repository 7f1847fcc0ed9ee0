package kv

import (
	"encoding/gob"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"
)

const sessionFile = "session.dat"

// In-Memory Thread-Safe registry of in-flight acquisitions.
// At most one entry per identifier is held at any time.
type Store struct {
	table  map[string]Entry
	owners map[internal.Identifier]string
	mu     sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		table:  make(map[string]Entry),
		owners: make(map[internal.Identifier]string),
	}
}

// Reserve registers e and claims its identifier. It fails with
// AlreadyInProgress when another entry holds the same identifier.
func (m *Store) Reserve(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.owners[e.Identifier()]; ok && owner != e.GetId() {
		return failure.New(
			failure.AlreadyInProgress,
			"reserve",
			errors.New("identifier held by task "+owner),
		)
	}

	m.owners[e.Identifier()] = e.GetId()
	m.table[e.GetId()] = e

	return nil
}

// Release drops e and frees its identifier.
func (m *Store) Release(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owners[e.Identifier()] == e.GetId() {
		delete(m.owners, e.Identifier())
	}
	delete(m.table, e.GetId())
}

// Get an entry given its id
func (m *Store) Get(id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.table[id]
	if !ok {
		return nil, errors.New("no acquisition found for the given key")
	}

	return entry, nil
}

func (m *Store) Holder(id internal.Identifier) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owner, ok := m.owners[id]
	return owner, ok
}

func (m *Store) Keys() *[]string {
	var running []string

	m.mu.RLock()
	defer m.mu.RUnlock()

	for id := range m.table {
		running = append(running, id)
	}

	return &running
}

// Returns a slice of all currently tracked acquisitions
func (m *Store) All() *[]internal.TaskSnapshot {
	running := []internal.TaskSnapshot{}

	m.mu.RLock()
	for _, v := range m.table {
		running = append(running, *(v.Status()))
	}
	m.mu.RUnlock()

	return &running
}

// Persist the registry in a single file named "session.dat" inside dir
func (m *Store) Persist(dir string) error {
	running := m.All()

	fd, err := os.Create(filepath.Join(dir, sessionFile))
	if err != nil {
		return errors.Join(errors.New("failed to persist session"), err)
	}
	defer fd.Close()

	session := Session{Tasks: *running}

	if err := gob.NewEncoder(fd).Encode(session); err != nil {
		return errors.Join(errors.New("failed to persist session"), err)
	}

	slog.Info("session persisted", slog.Int("tasks", len(session.Tasks)))
	return nil
}

// Restore returns the locators of the acquisitions persisted by a previous
// run and removes the session file.
func Restore(dir string) []string {
	sf := filepath.Join(dir, sessionFile)

	fd, err := os.Open(sf)
	if err != nil {
		return nil
	}
	defer os.Remove(sf)
	defer fd.Close()

	var session Session

	if err := gob.NewDecoder(fd).Decode(&session); err != nil {
		slog.Warn("discarding unreadable session", slog.Any("err", err))
		return nil
	}

	locators := make([]string, 0, len(session.Tasks))
	for _, snap := range session.Tasks {
		if snap.State.IsActive() && snap.Locator != "" {
			locators = append(locators, snap.Locator)
		}
	}

	return locators
}
