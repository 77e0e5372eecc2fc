// Package repo provides postgres access for the crawl run ledger
package repo

import (
	"context"
	_ "embed"
	"time"

	"commitcrawl/internal/modkit/repokit"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/store"
	"commitcrawl/internal/services/crawl/domain"
)

//go:embed schema.sql
var schema string

type (
	// PG is a Postgres binder for domain.LedgerRepo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a Postgres binder for domain.LedgerRepo
func NewPG() repokit.Binder[domain.LedgerRepo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.LedgerRepo { return &queries{q: q} }

// EnsureSchema creates the ledger tables when missing
func EnsureSchema(ctx context.Context, q repokit.Queryer) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "create ledger schema")
	}
	return nil
}

// StartRun records a run as running (idempotent)
func (r *queries) StartRun(ctx context.Context, rec domain.RunRecord) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO crawl_runs (id, mode, login, output, status, started_at)
		VALUES ($1, $2, $3, $4, 'running', $5)
		ON CONFLICT (id) DO UPDATE
		SET status = 'running', started_at = excluded.started_at, finished_at = null
	`, rec.ID, string(rec.Mode), rec.Login, rec.Output, rec.StartedAt.UTC())
	return wrapDB(err, "start run")
}

// FinishRun stores the final counters of a run
func (r *queries) FinishRun(ctx context.Context, rec domain.RunRecord) error {
	var fin *time.Time
	if rec.FinishedAt != nil {
		t := rec.FinishedAt.UTC()
		fin = &t
	}
	err := store.ExecOne(ctx, r.q, `
		UPDATE crawl_runs SET
			status = $2,
			finished_at = $3,
			units = $4,
			ok = $5,
			partial = $6,
			failed = $7,
			canceled = $8,
			fetched = $9,
			added = $10,
			row_count = $11
		WHERE id = $1
	`,
		rec.ID, rec.Status, fin, rec.Units, rec.OK, rec.Partial, rec.Failed, rec.Canceled,
		rec.Fetched, rec.Added, rec.Rows,
	)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return perr.Newf(perr.ErrorCodeNotFound, "run %s was never started", rec.ID)
	}
	return wrapDB(err, "finish run")
}

// FinishUnit stores the outcome of one unit (idempotent per run and unit)
func (r *queries) FinishUnit(ctx context.Context, runID string, res domain.UnitResult, finishedAt time.Time) error {
	var since *time.Time
	if res.Since != nil {
		s := res.Since.UTC()
		since = &s
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO crawl_units (run_id, unit, outcome, since, pages, fetched, added, elapsed_ms, error, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''), $10)
		ON CONFLICT (run_id, unit) DO UPDATE SET
			outcome = excluded.outcome,
			since = excluded.since,
			pages = excluded.pages,
			fetched = excluded.fetched,
			added = excluded.added,
			elapsed_ms = excluded.elapsed_ms,
			error = excluded.error,
			finished_at = excluded.finished_at
	`,
		runID, res.Unit, string(res.Outcome), since, res.Pages, res.Fetched, res.Added,
		res.Elapsed.Milliseconds(), res.Err, finishedAt.UTC(),
	)
	return wrapDB(err, "finish unit")
}

// LastSuccess returns the latest ok finish of unit across all runs
func (r *queries) LastSuccess(ctx context.Context, unit string) (time.Time, bool, error) {
	at, err := store.Scalar[*time.Time](ctx, r.q, `
		SELECT max(finished_at) FROM crawl_units
		WHERE unit = $1 AND outcome = 'ok'
	`, unit)
	if err != nil {
		return time.Time{}, false, wrapDB(err, "last success")
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return at.UTC(), true, nil
}

// ListRuns returns the newest runs first
func (r *queries) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	out, err := store.Many(ctx, r.q, scanRun, `
		SELECT id::text, mode, login, output, status, started_at, finished_at,
			units, ok, partial, failed, canceled, fetched, added, row_count
		FROM crawl_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrapDB(err, "list runs")
	}
	return out, nil
}

func scanRun(row store.Row) (domain.RunRecord, error) {
	var rec domain.RunRecord
	var mode string
	err := row.Scan(
		&rec.ID, &mode, &rec.Login, &rec.Output, &rec.Status, &rec.StartedAt, &rec.FinishedAt,
		&rec.Units, &rec.OK, &rec.Partial, &rec.Failed, &rec.Canceled, &rec.Fetched, &rec.Added, &rec.Rows,
	)
	rec.Mode = domain.Mode(mode)
	return rec, err
}

func wrapDB(err error, op string) error { return perr.FromPostgres(err, op) }
