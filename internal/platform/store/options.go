package store

import (
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
)

// Option mutates Store during Open
type Option func(*Store) error

// WithLogger sets the logger the backends report through
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}

// WithLedger injects an already open run ledger; Open will not dial one
func WithLedger(tx TxRunner) Option {
	return func(s *Store) error {
		if tx == nil {
			return errNilBackend("ledger")
		}
		s.PG = tx
		return nil
	}
}

// WithMirror injects an already open mirror; Open will not dial one
func WithMirror(c Clickhouse) Option {
	return func(s *Store) error {
		if c == nil {
			return errNilBackend("mirror")
		}
		s.CH = c
		return nil
	}
}

func errNilBackend(name string) error {
	return perr.InvalidArgf("%s: nil backend", name)
}
