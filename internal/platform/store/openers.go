package store

import (
	"context"
	"time"

	"commitcrawl/internal/core/version"
	perr "commitcrawl/internal/platform/errors"
	chx "commitcrawl/internal/platform/store/ch"
	"commitcrawl/internal/platform/store/pg"

	"github.com/cenkalti/backoff/v4"
)

const (
	pingBackoffStart   = 150 * time.Millisecond
	pingBackoffCeiling = 2 * time.Second
)

// openPG opens pg and wraps it with our sql adapter once the pool answers a ping
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	if cfg.PG.URL == "" {
		return nil, perr.InvalidArgf("ledger url is required when the ledger is enabled")
	}
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		AppName:  appName(cfg.AppName),
		MaxConns: cfg.PG.MaxConns,
		MaxIdle:  cfg.PG.MaxIdle,
		SlowMs:   cfg.PG.SlowQueryMs,
	}, tracer)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "ledger config")
	}

	retries := cfg.PG.ConnectRetries
	if retries <= 0 {
		retries = 6
	}
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = pingBackoffStart
	eb.MaxInterval = pingBackoffCeiling
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries-1)), ctx)

	err = backoff.RetryNotify(func() error {
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		// the pool directly, so boot pings never reach the sql tracer
		return p.Ping(toCtx)
	}, policy, func(err error, d time.Duration) {
		s.Log.Warn().Err(err).Dur("retry_in", d).Msg("postgres not ready")
	})
	if err != nil {
		p.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "postgres ping failed after %d attempts", retries)
	}
	return newPGAdapter(p), nil
}

// appName is what pg_stat_activity shows for our connections
func appName(role string) string {
	if role == "" {
		return version.Service
	}
	return version.Service + "-" + role
}

func openCH(ctx context.Context, cfg Config, _ *Store) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.AppName})
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "clickhouse open")
	}
	return newCHAdapter(c), nil
}
