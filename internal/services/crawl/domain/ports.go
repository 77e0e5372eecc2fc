package domain

import (
	"context"
	"iter"
	"time"

	"commitcrawl/internal/adapters/forge/github"
	"commitcrawl/internal/core/paginate"
	"commitcrawl/internal/core/quota"
	"commitcrawl/internal/core/record"
	"commitcrawl/internal/services/dataset"
)

// RunnerPort is the public port of the crawl module
type RunnerPort interface {
	Run(ctx context.Context) (Report, error)
	Probe(ctx context.Context) (User, quota.State, error)
}

// RunsPort lists recorded runs, newest first
type RunsPort interface {
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// Forge is the part of the GitHub client a run needs
type Forge interface {
	AuthenticatedUser(ctx context.Context) (github.User, error)
	ListCommits(ctx context.Context, cq github.CommitQuery, maxPages int) iter.Seq2[paginate.Page[record.RawCommit], error]
	Governor() *quota.Governor
}

// Walker enumerates the units of a run. It may return units together with an
// error when the listing broke off part way.
type Walker interface {
	Walk(ctx context.Context) ([]WorkUnit, error)
}

// Merger is the dataset a run extends
type Merger interface {
	Merge(ctx context.Context, rows []record.Row) (dataset.Stats, error)
	Count(ctx context.Context) (int, error)
	Path() string
}

// Mirror receives every merged batch
type Mirror interface {
	Write(ctx context.Context, rows []record.Row, runID string) error
}

// LedgerRepo is the storage repository for run bookkeeping
type LedgerRepo interface {
	// StartRun records a run as running
	StartRun(ctx context.Context, rec RunRecord) error

	// FinishRun stores the final counters of a run
	FinishRun(ctx context.Context, rec RunRecord) error

	// FinishUnit stores the outcome of one unit
	FinishUnit(ctx context.Context, runID string, res UnitResult, finishedAt time.Time) error

	// LastSuccess returns when unit last finished ok; ok is false when never
	LastSuccess(ctx context.Context, unit string) (at time.Time, ok bool, err error)

	// ListRuns returns the newest runs first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
