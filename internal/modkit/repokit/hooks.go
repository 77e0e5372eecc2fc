package repokit

import (
	"context"
	"strconv"
	"time"
)

// Hook runs first inside every transaction opened through a Hooked runner
type Hook func(ctx context.Context, q Queryer) error

// Hooked opens transactions that start with its hooks. Statements issued
// outside a transaction go straight to the embedded runner.
type Hooked struct {
	TxRunner
	hooks []Hook
}

// WithHooks wraps tx so each of its transactions runs hooks before the body
func WithHooks(tx TxRunner, hooks ...Hook) Hooked {
	return Hooked{TxRunner: tx, hooks: hooks}
}

// Tx implements TxRunner
func (h Hooked) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hook := range h.hooks {
			if err := hook(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}

// Timeouts caps statements and lock waits for the rest of the transaction.
// A zero duration leaves that setting at the server default.
func Timeouts(statement, lock time.Duration) Hook {
	settings := []struct {
		name string
		d    time.Duration
	}{
		{"statement_timeout", statement},
		{"lock_timeout", lock},
	}
	return func(ctx context.Context, q Queryer) error {
		for _, s := range settings {
			if s.d <= 0 {
				continue
			}
			ms := strconv.FormatInt(s.d.Milliseconds(), 10) + "ms"
			if _, err := q.Exec(ctx, "select set_config($1, $2, true)", s.name, ms); err != nil {
				return err
			}
		}
		return nil
	}
}
