package ch

import (
	"context"
	"errors"
	"testing"

	"commitcrawl/internal/platform/testkit"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// fakeConn overrides the driver.Conn methods the client uses
type fakeConn struct {
	driver.Conn
	pingErr  error
	closed   bool
	batch    *fakeBatch
	prepared string
	execSQL  string
}

func (f *fakeConn) Ping(context.Context) error { return f.pingErr }
func (f *fakeConn) Close() error               { f.closed = true; return nil }
func (f *fakeConn) Exec(_ context.Context, sql string, _ ...any) error {
	f.execSQL = sql
	return nil
}
func (f *fakeConn) PrepareBatch(_ context.Context, q string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	f.prepared = q
	return f.batch, nil
}

type fakeBatch struct {
	driver.Batch
	rows      [][]any
	appendErr error
	sent      bool
	aborted   bool
}

func (b *fakeBatch) Append(v ...any) error {
	if b.appendErr != nil {
		return b.appendErr
	}
	b.rows = append(b.rows, v)
	return nil
}
func (b *fakeBatch) Send() error  { b.sent = true; return nil }
func (b *fakeBatch) Abort() error { b.aborted = true; return nil }

func withConn(t *testing.T, fc *fakeConn) *[]*clickhouse.Options {
	t.Helper()
	testkit.Serial(t)
	var seen []*clickhouse.Options
	testkit.Swap(t, &openConn, func(o *clickhouse.Options) (driver.Conn, error) {
		seen = append(seen, o)
		return fc, nil
	})
	return &seen
}

func TestOpen_ParsesDSNAndSetsClientInfo(t *testing.T) {
	seen := withConn(t, &fakeConn{})

	c, err := Open(context.Background(), Config{URL: "clickhouse://u:p@ch.local:9000/crawl", Role: "crawl", Tag: "dev"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("openConn calls = %d", len(*seen))
	}
	o := (*seen)[0]
	if o.Auth.Database != "crawl" || o.Auth.Username != "u" {
		t.Fatalf("dsn not applied: %+v", o.Auth)
	}
	if len(o.ClientInfo.Products) == 0 || o.ClientInfo.Products[0].Name != "commitcrawl" {
		t.Fatalf("client info = %+v", o.ClientInfo)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatalf("empty url should fail")
	}

	fc := &fakeConn{pingErr: errors.New("refused")}
	withConn(t, fc)
	if _, err := Open(context.Background(), Config{URL: "clickhouse://localhost:9000"}); err == nil {
		t.Fatalf("ping failure should fail Open")
	}
	if !fc.closed {
		t.Fatalf("conn not closed after failed ping")
	}
}

func TestInsert_BatchesRows(t *testing.T) {
	b := &fakeBatch{}
	c := &CH{conn: &fakeConn{batch: b}}
	err := c.Insert(context.Background(), "commits", [][]any{{"a", 1}, {"b", 2}})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if len(b.rows) != 2 || !b.sent {
		t.Fatalf("batch = %+v", b)
	}
	if c.conn.(*fakeConn).prepared != "INSERT INTO commits" {
		t.Fatalf("prepared = %q", c.conn.(*fakeConn).prepared)
	}

	if err := c.Insert(context.Background(), "commits", nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
}

func TestInsert_AppendErrorAborts(t *testing.T) {
	b := &fakeBatch{appendErr: errors.New("type mismatch")}
	c := &CH{conn: &fakeConn{batch: b}}
	if err := c.Insert(context.Background(), "commits", [][]any{{"a"}}); err == nil {
		t.Fatalf("expected append error")
	}
	if !b.aborted || b.sent {
		t.Fatalf("batch should be aborted, not sent: %+v", b)
	}
}

func TestExecAndNilClose(t *testing.T) {
	fc := &fakeConn{}
	c := &CH{conn: fc}
	if err := c.Exec(context.Background(), "SELECT 1"); err != nil || fc.execSQL != "SELECT 1" {
		t.Fatalf("Exec err=%v sql=%q", err, fc.execSQL)
	}
	var nilCH *CH
	if err := nilCH.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestClientInfo(t *testing.T) {
	ci := ClientInfo(" ", "v1")
	if len(ci.Products) != 5 {
		t.Fatalf("products = %+v", ci.Products)
	}
	if ci.Products[0].Name != "commitcrawl" || ci.Products[0].Version != "v1" {
		t.Fatalf("binary product = %+v", ci.Products[0])
	}
	if ci.Products[1].Version != "-" {
		t.Fatalf("blank role should render as -, got %q", ci.Products[1].Version)
	}
	if got := ClientInfo("serve", "").Products[0].Version; got == "" || got == "-" {
		t.Fatalf("empty tag should fall back to the build version, got %q", got)
	}
	if short("4f1c2e9aa") != "4f1c2e9" || short("") != "-" || short("none") != "none" {
		t.Fatalf("short mismatch")
	}
}
