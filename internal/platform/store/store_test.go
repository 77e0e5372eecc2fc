package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"commitcrawl/internal/platform/config"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/store/ch"
)

type pingTx struct {
	memQuerier
	err error
}

func (p pingTx) Tx(ctx context.Context, fn func(q RowQuerier) error) error { return fn(p) }
func (p pingTx) Ping(context.Context) error                                { return p.err }

type fakeCH struct {
	pingErr error
	closed  bool
	rows    [][]any
	exec    []string
}

func (f *fakeCH) Insert(_ context.Context, _ string, rows [][]any) error {
	f.rows = append(f.rows, rows...)
	return nil
}
func (f *fakeCH) Exec(_ context.Context, sql string, _ ...any) error {
	f.exec = append(f.exec, sql)
	return nil
}
func (f *fakeCH) Query(context.Context, string, ...any) (ch.Rows, error) {
	return nil, errors.New("no rows")
}
func (f *fakeCH) Ping(context.Context) error { return f.pingErr }
func (f *fakeCH) Close() error               { f.closed = true; return nil }

func TestOpen_NothingEnabled(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("unexpected seams PG=%T CH=%T", s.PG, s.CH)
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard with no seams: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_PGEnabledWithoutURL(t *testing.T) {
	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true}})
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpen_PGEnabledBadURL(t *testing.T) {
	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "://bad"}})
	if err == nil {
		t.Fatalf("expected error for unparsable url")
	}
}

func TestOpen_OptionError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Open(context.Background(), Config{}, func(*Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestGuard(t *testing.T) {
	if err := (*Store)(nil).Guard(context.Background()); err == nil {
		t.Fatalf("nil store should fail Guard")
	}

	c := &fakeCH{pingErr: errors.New("ch down")}
	s := &Store{PG: pingTx{err: errors.New("pg down")}, CH: newCHAdapter(c)}
	err := s.Guard(context.Background())
	if err == nil {
		t.Fatalf("expected joined error")
	}
	for _, want := range []string{"pg: pg down", "ch: ch down"} {
		if !contains(err.Error(), want) {
			t.Fatalf("Guard error %q missing %q", err, want)
		}
	}

	s = &Store{PG: pingTx{}, CH: newCHAdapter(&fakeCH{})}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("healthy Guard: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCHAdapter_Delegates(t *testing.T) {
	c := &fakeCH{}
	a := newCHAdapter(c)
	ctx := context.Background()

	if err := a.Insert(ctx, "commits", [][]any{{"a"}}); err != nil || len(c.rows) != 1 {
		t.Fatalf("Insert: %v %v", err, c.rows)
	}
	if err := a.Exec(ctx, "OPTIMIZE TABLE commits"); err != nil || c.exec[0] != "OPTIMIZE TABLE commits" {
		t.Fatalf("Exec: %v %v", err, c.exec)
	}
	if _, err := a.Query(ctx, "SELECT 1"); err == nil {
		t.Fatalf("Query error not surfaced")
	}
	if err := a.Close(); err != nil || !c.closed {
		t.Fatalf("Close: %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("CORE_LEDGER_ENABLED", "true")
	t.Setenv("CORE_LEDGER_URL", "postgres://u:p@db:5432/crawl")
	t.Setenv("CORE_LEDGER_MAX_CONNS", "9")
	t.Setenv("CORE_LEDGER_PING_TIMEOUT", "750ms")
	t.Setenv("CORE_MIRROR_ENABLED", "1")
	t.Setenv("CORE_MIRROR_URL", "clickhouse://ch:9000/default")

	c := FromConfig(config.New(), "crawl")
	if !c.PG.Enabled || c.PG.URL != "postgres://u:p@db:5432/crawl" || c.PG.MaxConns != 9 {
		t.Fatalf("pg = %+v", c.PG)
	}
	if c.PG.PingTimeout != 750*time.Millisecond || c.PG.ConnectRetries != 6 || c.PG.MaxIdle != time.Minute {
		t.Fatalf("pg boot knobs = %+v", c.PG)
	}
	if !c.CH.Enabled || c.CH.Table != "commits" || c.AppName != "crawl" {
		t.Fatalf("ch = %+v", c.CH)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
