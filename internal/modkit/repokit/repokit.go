// Package repokit binds ledger repositories to a querier and runs them inside
// hooked transactions
package repokit

import (
	"context"

	"commitcrawl/internal/platform/store"
)

type (
	// Queryer is what a bound repository issues statements through
	Queryer = store.RowQuerier
	// TxRunner opens transactions and also queries outside of one
	TxRunner = store.TxRunner
	Rows     = store.Rows
	Row      = store.Row

	CommandTag = store.CommandTag
)

// Binder produces a repository bound to one Queryer, usually a transaction
type Binder[T any] interface {
	Bind(Queryer) T
}

// BindFunc adapts a constructor to Binder
type BindFunc[T any] func(Queryer) T

// Bind implements Binder
func (f BindFunc[T]) Bind(q Queryer) T { return f(q) }

// MustBind binds b to q and panics on a nil q, which is always a wiring bug
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: bind on nil Queryer")
	}
	return b.Bind(q)
}

// InTx binds b to a fresh transaction of tx and runs fn with it. Begin hooks
// on tx run first; fn's error rolls the transaction back.
func InTx[T any](ctx context.Context, tx TxRunner, b Binder[T], fn func(T) error) error {
	if tx == nil {
		panic("repokit: InTx on nil TxRunner")
	}
	return tx.Tx(ctx, func(q Queryer) error {
		return fn(MustBind(b, q))
	})
}
