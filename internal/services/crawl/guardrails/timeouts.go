// Package guardrails holds cross cutting safety helpers for crawl runs
package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for a crawl.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Unit is the overall time budget for fetching one work unit
	Unit time.Duration

	// Merge caps one dataset merge
	Merge time.Duration

	// Ledger caps a single ledger or mirror write
	Ledger time.Duration
}

// WithUnit returns a context limited by the unit budget without extending any parent deadline.
// if Unit is zero it returns a cancelable child that simply inherits the parent deadline
func WithUnit(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Unit)
}

// ForMerge returns a sub context for a merge bounded by Merge and any remaining parent budget
func ForMerge(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Merge)
}

// ForLedger returns a sub context for bookkeeping bounded by Ledger and any remaining parent budget
func ForLedger(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Ledger)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		d := time.Until(dl)
		if d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout chooses the tighter of the requested duration and any parent remainder.
// Never extends the parent deadline
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
