// Package pg opens the pgx pool behind the run ledger
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the ledger pool. A crawl holds at most a handful of
// connections for minutes, so idle connections are dropped quickly.
type Config struct {
	URL      string
	AppName  string
	MaxConns int32
	MaxIdle  time.Duration
	SlowMs   int
}

// PG is the ledger pool plus the tracer the sql adapter reports through
type PG struct {
	Pool   *pgxpool.Pool
	Tracer QueryTracer
	SlowMs int
}

// Tune adjusts the parsed pool config before the pool is built
type Tune func(*pgxpool.Config)

var newPool = pgxpool.NewWithConfig

// Open parses cfg.URL, applies cfg and then every tune in order, and builds the pool.
// No connection is made until the first query or ping.
func Open(ctx context.Context, cfg Config, tracer QueryTracer, tunes ...Tune) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxIdle > 0 {
		pcfg.MaxConnIdleTime = cfg.MaxIdle
	}
	if cfg.AppName != "" {
		if pcfg.ConnConfig.RuntimeParams == nil {
			pcfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	for _, t := range tunes {
		if t != nil {
			t(pcfg)
		}
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool, Tracer: tracer, SlowMs: cfg.SlowMs}, nil
}

// Ping checks a pooled connection answers
func (p *PG) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// Close closes the pool; nil safe
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
