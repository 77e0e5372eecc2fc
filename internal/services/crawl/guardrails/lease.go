package guardrails

import (
	"context"
	"errors"
	"time"

	"commitcrawl/internal/modkit/repokit"
)

// ErrLeaseHeld signals another crawler is writing the same output already.
var ErrLeaseHeld = errors.New("crawl: output lease already held")

// LeaseFunc runs do while holding the lease on output
type LeaseFunc func(ctx context.Context, output string, do func(context.Context) error) error

// MakeOutputLease returns a LeaseFunc backed by the crawl_leases table.
// A row is claimed when absent or expired; the holder's row is removed when do
// returns. An expired lease left by a crashed process is taken over.
func MakeOutputLease(db repokit.TxRunner, holder string, ttl time.Duration) LeaseFunc {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return func(ctx context.Context, output string, do func(context.Context) error) error {
		var claimed bool
		err := db.Tx(ctx, func(q repokit.Queryer) error {
			rows, err := q.Query(ctx, `
				insert into crawl_leases (output, holder, expires_at)
				values ($1, $2, now() + make_interval(secs => $3))
				on conflict (output) do update
				set holder = excluded.holder, expires_at = excluded.expires_at
				where crawl_leases.expires_at < now()
				returning true
			`, output, holder, ttl.Seconds())
			if err != nil {
				return err
			}
			defer rows.Close()
			if rows.Next() {
				claimed = true
			}
			return rows.Err()
		})
		if err != nil {
			return err
		}
		if !claimed {
			return ErrLeaseHeld
		}

		defer func() {
			// release on a fresh context so a canceled run still frees the row
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_, _ = db.Exec(rctx, `delete from crawl_leases where output = $1 and holder = $2`, output, holder)
		}()
		return do(ctx)
	}
}

// NoLease runs do directly
func NoLease(ctx context.Context, _ string, do func(context.Context) error) error { return do(ctx) }
