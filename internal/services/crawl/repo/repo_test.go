package repo

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/store"
	"commitcrawl/internal/services/crawl/domain"
)

type tag int64

func (t tag) String() string      { return "OK" }
func (t tag) RowsAffected() int64 { return int64(t) }

// memRows hands back preset values through reflection
type memRows struct {
	vals [][]any
	i    int
}

func (r *memRows) Next() bool { r.i++; return r.i <= len(r.vals) }
func (r *memRows) Scan(dest ...any) error {
	for i, d := range dest {
		v := r.vals[r.i-1][i]
		if v == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}
func (r *memRows) Err() error        { return nil }
func (r *memRows) Close()            {}
func (r *memRows) Columns() []string { return nil }

type oneRow struct {
	v   any
	err error
}

func (r oneRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.v != nil {
		reflect.ValueOf(dest[0]).Elem().Set(reflect.ValueOf(r.v))
	}
	return nil
}

type fakeQ struct {
	affected int64
	err      error
	row      oneRow
	rows     [][]any

	sqls []string
	args [][]any
}

func (f *fakeQ) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return tag(f.affected), f.err
}

func (f *fakeQ) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	if f.err != nil {
		return nil, f.err
	}
	return &memRows{vals: f.rows}, nil
}

func (f *fakeQ) QueryRow(_ context.Context, sql string, args ...any) store.Row {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return f.row
}

func TestEnsureSchema(t *testing.T) {
	q := &fakeQ{}
	if err := EnsureSchema(context.Background(), q); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	for _, tbl := range []string{"crawl_runs", "crawl_units", "crawl_leases"} {
		if !strings.Contains(q.sqls[0], tbl) {
			t.Fatalf("schema misses %s", tbl)
		}
	}

	q = &fakeQ{err: errors.New("denied")}
	if err := EnsureSchema(context.Background(), q); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("err = %v, want DB", err)
	}
}

func TestStartAndFinishRun(t *testing.T) {
	q := &fakeQ{affected: 1}
	l := NewPG().Bind(q)
	ctx := context.Background()

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	if err := l.StartRun(ctx, domain.RunRecord{ID: "r1", Mode: domain.ModeRepos, Output: "c.csv", StartedAt: start}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if got := q.args[0][4].(time.Time); got.Location() != time.UTC || !got.Equal(start) {
		t.Fatalf("started_at = %v", got)
	}

	fin := start.Add(time.Minute)
	rec := domain.RunRecord{ID: "r1", Status: "ok", FinishedAt: &fin, Units: 2, OK: 2, Rows: 9}
	if err := l.FinishRun(ctx, rec); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if q.args[1][1] != "ok" || q.args[1][10] != 9 {
		t.Fatalf("finish args = %v", q.args[1])
	}

	q.affected = 0
	if err := l.FinishRun(ctx, rec); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("unknown run err = %v", err)
	}
}

func TestFinishUnit(t *testing.T) {
	q := &fakeQ{affected: 1}
	l := NewPG().Bind(q)
	res := domain.UnitResult{Unit: "octo/a", Outcome: domain.OutcomePartial, Pages: 3, Elapsed: 1500 * time.Millisecond, Err: "status 502"}
	if err := l.FinishUnit(context.Background(), "r1", res, time.Now()); err != nil {
		t.Fatalf("FinishUnit: %v", err)
	}
	a := q.args[0]
	if a[1] != "octo/a" || a[2] != "partial" || a[3].(*time.Time) != nil || a[7] != int64(1500) || a[8] != "status 502" {
		t.Fatalf("args = %v", a)
	}

	q.err = errors.New("conn reset")
	if err := l.FinishUnit(context.Background(), "r1", res, time.Now()); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("err = %v", err)
	}
}

func TestLastSuccess(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewPG().Bind(&fakeQ{row: oneRow{v: &at}})
	got, ok, err := l.LastSuccess(context.Background(), "octo/a")
	if err != nil || !ok || !got.Equal(at) {
		t.Fatalf("LastSuccess = %v %v %v", got, ok, err)
	}

	l = NewPG().Bind(&fakeQ{})
	if _, ok, err := l.LastSuccess(context.Background(), "octo/a"); ok || err != nil {
		t.Fatalf("never succeeded = %v %v", ok, err)
	}

	l = NewPG().Bind(&fakeQ{row: oneRow{err: errors.New("boom")}})
	if _, _, err := l.LastSuccess(context.Background(), "octo/a"); !perr.IsCode(err, perr.ErrorCodeDB) {
		t.Fatalf("err = %v", err)
	}
}

func TestListRuns(t *testing.T) {
	started := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	fin := started.Add(time.Hour)
	q := &fakeQ{rows: [][]any{
		{"r2", "branches", "octo", "c.csv", "running", started, nil, 0, 0, 0, 0, 0, 0, 0, 0},
		{"r1", "repos", "octo", "c.csv", "ok", started, &fin, 3, 3, 0, 0, 0, 40, 12, 12},
	}}
	runs, err := NewPG().Bind(q).ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].Mode != domain.ModeBranches || runs[0].FinishedAt != nil {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[1].FinishedAt == nil || runs[1].Added != 12 || runs[1].Rows != 12 {
		t.Fatalf("second run = %+v", runs[1])
	}
	if q.args[0][0] != 20 {
		t.Fatalf("default limit = %v", q.args[0][0])
	}
}
