package store

import (
	"context"

	"commitcrawl/internal/platform/store/ch"
)

// chConn is the part of *ch.CH the mirror seam needs
type chConn interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (ch.Rows, error)
	Ping(ctx context.Context) error
	Close() error
}

// mirror exposes a ClickHouse connection as Clickhouse. Only Query needs
// translating: ch.Rows reports its Close error, store Rows do not.
type mirror struct{ chConn }

func newCHAdapter(c chConn) Clickhouse { return mirror{c} }

func (m mirror) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := m.chConn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
