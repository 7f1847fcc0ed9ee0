package archive

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/liquidtune/tunevault/server/internal"
	"github.com/liquidtune/tunevault/server/internal/failure"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("history entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL DEFAULT '',
	locator TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	error_kind TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	destination TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS history_finished_at ON history (finished_at);
`

// Open the sqlite database holding the history.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Join(errors.New("failed to migrate history database"), err)
	}

	return db, nil
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Archive(ctx context.Context, e *Entity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO history
			(id, identifier, locator, title, state, error_kind, reason, destination, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Id,
		e.Identifier,
		e.Locator,
		e.Title,
		string(e.State),
		string(e.ErrorKind),
		e.Reason,
		e.Destination,
		e.CreatedAt.UnixMilli(),
		e.FinishedAt.UnixMilli(),
	)
	return err
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identifier, locator, title, state, error_kind, reason, destination, created_at, finished_at
		FROM history
		ORDER BY finished_at DESC, id
		LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := []Entity{}

	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}

	return entities, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (*Entity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, identifier, locator, title, state, error_kind, reason, destination, created_at, finished_at
		FROM history
		WHERE id = ?`,
		id,
	)

	e, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*Entity, error) {
	var (
		e                 Entity
		state, kind       string
		created, finished int64
	)

	err := s.Scan(
		&e.Id,
		&e.Identifier,
		&e.Locator,
		&e.Title,
		&state,
		&kind,
		&e.Reason,
		&e.Destination,
		&created,
		&finished,
	)
	if err != nil {
		return nil, err
	}

	e.State = internal.AcquisitionState(state)
	e.ErrorKind = failure.Kind(kind)
	e.CreatedAt = time.UnixMilli(created)
	e.FinishedAt = time.UnixMilli(finished)

	return &e, nil
}
