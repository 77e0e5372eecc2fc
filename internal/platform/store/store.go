// Package store opens the optional backends of a crawl: the run ledger on
// postgres and the dataset mirror on clickhouse. Either may be absent; the
// CSV dataset never lives here.
package store

import (
	"context"
	"errors"
	"fmt"

	"commitcrawl/internal/platform/logger"
)

// Store holds whichever backends are enabled. The zero value has none.
type Store struct {
	Log logger.Logger
	PG  TxRunner   // run ledger, nil when disabled
	CH  Clickhouse // dataset mirror, nil when disabled
}

type (
	// Row scans a single result row
	Row interface {
		Scan(dest ...any) error
	}

	// Rows iterates a result set; Rows also satisfies Row for the current position
	Rows interface {
		Row
		Next() bool
		Err() error
		Close()
		Columns() []string
	}

	// CommandTag reports what a statement did
	CommandTag interface {
		String() string
		RowsAffected() int64
	}
)

// RowQuerier is the sql surface ledger repositories are written against
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner is a RowQuerier that can also run fn inside one transaction
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Clickhouse is the mirror surface: batch inserts, DDL and reads
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger is a backend that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open applies opts, then dials every enabled backend that no option
// injected. A failed dial closes whatever was already open.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	// a zero logger writes nowhere; copying keeps callers' loggers untouched
	s.Log = s.Log.With().Logger()

	var err error
	if cfg.PG.Enabled && s.PG == nil {
		if s.PG, err = openPG(ctx, cfg, s); err != nil {
			s.PG = nil
			_ = s.Close(ctx)
			return nil, err
		}
	}
	if cfg.CH.Enabled && s.CH == nil {
		if s.CH, err = openCH(ctx, cfg, s); err != nil {
			s.CH = nil
			_ = s.Close(ctx)
			return nil, err
		}
	}
	return s, nil
}

// backend pairs an enabled seam with the name used in errors
type backend struct {
	name string
	v    any
}

// backends lists enabled seams in close order, mirror first
func (s *Store) backends() []backend {
	var out []backend
	if s.CH != nil {
		out = append(out, backend{"ch", s.CH})
	}
	if s.PG != nil {
		out = append(out, backend{"pg", s.PG})
	}
	return out
}

// Guard pings every enabled backend and joins the failures
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	for _, b := range s.backends() {
		if p, ok := b.v.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every enabled backend; nil safe
func (s *Store) Close(_ context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, b := range s.backends() {
		if c, ok := b.v.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
