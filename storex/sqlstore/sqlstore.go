// Package sqlstore persists batch runs in PostgreSQL through sqlx.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Abraxas-365/visionocr/storex"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS ocr_runs (
	id          TEXT PRIMARY KEY,
	backend     TEXT NOT NULL,
	model       TEXT NOT NULL,
	total       INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	items       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS ocr_runs_started_at_idx ON ocr_runs (started_at DESC);
`

const upsertRun = `
INSERT INTO ocr_runs (id, backend, model, total, succeeded, failed, started_at, finished_at, items)
VALUES (:id, :backend, :model, :total, :succeeded, :failed, :started_at, :finished_at, :items)
ON CONFLICT (id) DO UPDATE SET
	backend = EXCLUDED.backend,
	model = EXCLUDED.model,
	total = EXCLUDED.total,
	succeeded = EXCLUDED.succeeded,
	failed = EXCLUDED.failed,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at,
	items = EXCLUDED.items`

// Store is a storex.RunStore over PostgreSQL
type Store struct {
	db *sqlx.DB
}

var _ storex.RunStore = (*Store)(nil)

// Open connects to dsn and creates the schema when missing
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, storex.ErrRegistry.NewWithCause(storex.ErrConnectionFailed, err).
			WithDetail("driver", "postgres")
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the runs table
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return storex.ErrRegistry.NewWithCause(storex.ErrQueryFailed, err).WithDetail("operation", "migrate")
	}
	return nil
}

func (s *Store) SaveRun(ctx context.Context, run storex.Run) error {
	if _, err := s.db.NamedExecContext(ctx, upsertRun, run); err != nil {
		return storex.ErrRegistry.NewWithCause(storex.ErrSaveFailed, err).
			WithDetail("id", run.ID).
			WithDetail("table", "ocr_runs")
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (storex.Run, error) {
	var run storex.Run
	err := s.db.GetContext(ctx, &run, `SELECT * FROM ocr_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return storex.Run{}, storex.NotFound(id)
	}
	if err != nil {
		return storex.Run{}, storex.ErrRegistry.NewWithCause(storex.ErrQueryFailed, err).
			WithDetail("id", id).
			WithDetail("table", "ocr_runs")
	}
	return run, nil
}

func (s *Store) ListRuns(ctx context.Context, opts storex.PaginationOptions) (storex.Paginated[storex.Run], error) {
	opts = opts.Normalize()
	where, args := listFilter(opts)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM ocr_runs`+where, args...); err != nil {
		return storex.Paginated[storex.Run]{}, storex.ErrRegistry.NewWithCause(storex.ErrQueryFailed, err).
			WithDetail("operation", "count")
	}

	query, args := listQuery(opts)
	var runs []storex.Run
	if err := s.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return storex.Paginated[storex.Run]{}, storex.ErrRegistry.NewWithCause(storex.ErrQueryFailed, err).
			WithDetail("operation", "list")
	}
	return storex.NewPaginated(runs, opts.Page, opts.PageSize, total), nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func listFilter(opts storex.PaginationOptions) (string, []any) {
	if opts.Backend == "" {
		return "", nil
	}
	return " WHERE backend = $1", []any{opts.Backend}
}

func listQuery(opts storex.PaginationOptions) (string, []any) {
	where, args := listFilter(opts)
	n := len(args)
	query := fmt.Sprintf("SELECT * FROM ocr_runs%s ORDER BY started_at DESC LIMIT $%d OFFSET $%d", where, n+1, n+2)
	return query, append(args, opts.PageSize, opts.Offset())
}
