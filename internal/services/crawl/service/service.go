// Package service runs crawls: probe, walk, fetch each unit and fold the
// rows into the dataset
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"commitcrawl/internal/adapters/forge/github"
	"commitcrawl/internal/core/normalize"
	"commitcrawl/internal/core/paginate"
	"commitcrawl/internal/core/quota"
	"commitcrawl/internal/core/record"
	"commitcrawl/internal/modkit/repokit"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
	"commitcrawl/internal/services/crawl/domain"
	"commitcrawl/internal/services/crawl/guardrails"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	ledgerRetries   = 2
	ledgerRetryWait = 100 * time.Millisecond
)

// errPageCap ends a unit whose listing still had pages past CommitPages
var errPageCap = errors.New("commit page cap reached with more pages upstream")

// Config holds the run options of the crawl service
type Config struct {
	Mode   domain.Mode
	Output string

	Workers     int // parallel units; <=0 -> 1
	CommitPages int // page cap per unit; <=0 -> uncapped
	MergeAtEnd  bool

	// Incremental raises a unit's since to its last ok finish minus Overlap
	Incremental bool
	Overlap     time.Duration

	Timeouts guardrails.Timeouts
}

// Deps are the collaborators of a run. Mirror, DB, Ledger and Lease are optional.
type Deps struct {
	Forge  domain.Forge
	Walker domain.Walker
	Store  domain.Merger
	Mirror domain.Mirror

	DB     repokit.TxRunner
	Ledger repokit.Binder[domain.LedgerRepo]
	Lease  guardrails.LeaseFunc
}

// Service implements domain.RunnerPort and domain.RunsPort
type Service struct {
	Deps
	Cfg Config

	now   func() time.Time
	newID func() string
}

// New constructs the crawl service
func New(d Deps, cfg Config) *Service {
	if d.Forge == nil {
		panic("crawl.Service requires a forge")
	}
	if d.Walker == nil {
		panic("crawl.Service requires a walker")
	}
	if d.Store == nil {
		panic("crawl.Service requires a dataset store")
	}
	if d.Lease == nil {
		d.Lease = guardrails.NoLease
	}
	if (d.DB == nil) != (d.Ledger == nil) {
		panic("crawl.Service needs both DB and Ledger or neither")
	}
	cfg.Workers = max(cfg.Workers, 1)
	return &Service{Deps: d, Cfg: cfg, now: time.Now, newID: uuid.NewString}
}

// Probe checks the credential and returns the account and its quota
func (s *Service) Probe(ctx context.Context) (domain.User, quota.State, error) {
	u, err := s.Forge.AuthenticatedUser(ctx)
	return u, s.Forge.Governor().Snapshot(), err
}

// ListRuns returns recorded runs, newest first
func (s *Service) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.Ledger == nil {
		return nil, perr.Unavailablef("run ledger is not enabled")
	}
	ctx, cancel := guardrails.ForLedger(ctx, s.Cfg.Timeouts)
	defer cancel()
	var runs []domain.RunRecord
	err := repokit.InTx(ctx, s.DB, s.Ledger, func(l domain.LedgerRepo) error {
		var err error
		runs, err = l.ListRuns(ctx, limit)
		return err
	})
	return runs, err
}

// Run performs one crawl. A failed probe or an empty, failed walk is fatal;
// unit failures are reported, not returned. A canceled run returns the report
// so far and the context error.
func (s *Service) Run(ctx context.Context) (domain.Report, error) {
	rep := domain.Report{
		RunID:   s.newID(),
		Mode:    s.Cfg.Mode,
		Output:  s.Store.Path(),
		Started: s.now().UTC(),
	}
	ctx = logger.WithRun(ctx, rep.RunID)
	log := logger.C(ctx)

	user, err := s.Forge.AuthenticatedUser(ctx)
	if err != nil {
		return rep, err
	}
	rep.Login = user.Login
	q := s.Forge.Governor().Snapshot()
	log.Info().Str("login", user.Login).Bool("quota_known", q.Known).Int("remaining", q.Remaining).
		Time("reset_at", q.ResetAt).Msg("credential ok")

	err = s.Lease(ctx, s.Store.Path(), func(ctx context.Context) error {
		return s.run(ctx, &rep)
	})
	if errors.Is(err, guardrails.ErrLeaseHeld) {
		return rep, perr.Wrapf(err, perr.ErrorCodeUnavailable, "another crawl is writing %s", s.Store.Path())
	}
	rep.Quota = s.Forge.Governor().Snapshot()
	return rep, err
}

func (s *Service) run(ctx context.Context, rep *domain.Report) error {
	log := logger.C(ctx)

	before, err := s.Store.Count(ctx)
	if err != nil {
		return err
	}
	rep.Before = before

	units, werr := s.Walker.Walk(ctx)
	if werr != nil {
		if len(units) == 0 {
			return werr
		}
		log.Warn().Err(werr).Int("units", len(units)).Msg("walk ended early, crawling what was listed")
	}
	log.Info().Int("units", len(units)).Str("mode", string(s.Cfg.Mode)).Int("rows_before", before).Msg("run started")

	s.ledgerDo(ctx, "start run", func(ctx context.Context, l domain.LedgerRepo) error {
		return l.StartRun(ctx, rep.Record())
	})

	rep.Units = make([]domain.UnitResult, len(units))
	done := make([]time.Time, len(units))
	var (
		mu      sync.Mutex
		pending []record.Row
	)
	collect := func(rows []record.Row) {
		mu.Lock()
		pending = append(pending, rows...)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(s.Cfg.Workers)
	for i, u := range units {
		if ctx.Err() != nil {
			rep.Units[i] = domain.UnitResult{Index: i + 1, Unit: u.Key(), Outcome: domain.OutcomeCanceled}
			continue
		}
		g.Go(func() error {
			rep.Units[i] = s.runUnit(ctx, i+1, len(units), u, collect)
			done[i] = s.now().UTC()
			if !s.Cfg.MergeAtEnd {
				s.finishUnit(ctx, rep.Units[i], done[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.Cfg.MergeAtEnd && len(pending) > 0 {
		mctx, cancel := guardrails.ForMerge(context.WithoutCancel(ctx), s.Cfg.Timeouts)
		stats, err := s.Store.Merge(mctx, pending)
		cancel()
		if err != nil {
			log.Error().Err(err).Int("rows", len(pending)).Msg("final merge failed")
			for i := range rep.Units {
				if o := rep.Units[i].Outcome; o == domain.OutcomeOK || o == domain.OutcomePartial {
					rep.Units[i].Outcome = domain.OutcomeFailed
					rep.Units[i].Err = err.Error()
				}
			}
		} else {
			rep.Added = stats.Added
			s.mirror(ctx, pending)
		}
	}
	if s.Cfg.MergeAtEnd {
		// unit records wait for the final merge so an ok never covers unwritten rows
		for i, at := range done {
			if !at.IsZero() {
				s.finishUnit(ctx, rep.Units[i], at)
			}
		}
	}

	for _, r := range rep.Units {
		rep.Fetched += r.Fetched
		if !s.Cfg.MergeAtEnd {
			rep.Added += r.Added
		}
	}
	if n, err := s.Store.Count(context.WithoutCancel(ctx)); err == nil {
		rep.Rows = n
	} else {
		log.Warn().Err(err).Msg("could not count dataset rows")
	}
	rep.Finished = s.now().UTC()

	s.ledgerDo(ctx, "finish run", func(ctx context.Context, l domain.LedgerRepo) error {
		return l.FinishRun(ctx, rep.Record())
	})

	log.Info().
		Int("units", len(rep.Units)).
		Int("ok", rep.Count(domain.OutcomeOK)).
		Int("partial", rep.Count(domain.OutcomePartial)).
		Int("failed", rep.Count(domain.OutcomeFailed)).
		Int("canceled", rep.Count(domain.OutcomeCanceled)).
		Int("fetched", rep.Fetched).
		Int("added", rep.Added).
		Int("rows", rep.Rows).
		Dur("elapsed", rep.Finished.Sub(rep.Started)).
		Msg("run finished")

	return ctx.Err()
}

// runUnit fetches one unit and, unless merging at the end, merges it. The
// caller records the result in the ledger.
func (s *Service) runUnit(ctx context.Context, idx, total int, u domain.WorkUnit, collect func([]record.Row)) domain.UnitResult {
	ctx = logger.WithUnit(ctx, u.Key())
	log := logger.C(ctx)
	start := s.now()
	res := domain.UnitResult{Index: idx, Unit: u.Key()}

	if ctx.Err() != nil {
		res.Outcome = domain.OutcomeCanceled
		return res
	}

	u = s.incremental(ctx, u)
	res.Since = u.Since

	rows, pages, ferr := s.fetch(ctx, u)
	res.Pages, res.Fetched = pages, len(rows)
	res.Outcome = classify(ctx, ferr)
	if ferr != nil {
		res.Err = ferr.Error()
	}

	switch res.Outcome {
	case domain.OutcomeFailed, domain.OutcomeCanceled:
		rows = nil
		log.Warn().Err(ferr).Str("outcome", string(res.Outcome)).Int("pages", pages).Msg("unit dropped")
	case domain.OutcomePartial:
		log.Warn().Err(ferr).Int("pages", pages).Int("fetched", len(rows)).Msg("unit cut short, keeping fetched pages")
	}

	if len(rows) > 0 {
		if s.Cfg.MergeAtEnd {
			collect(rows)
		} else {
			mctx, cancel := guardrails.ForMerge(context.WithoutCancel(ctx), s.Cfg.Timeouts)
			stats, err := s.Store.Merge(mctx, rows)
			cancel()
			if err != nil {
				res.Outcome = domain.OutcomeFailed
				res.Err = err.Error()
				log.Error().Err(err).Int("rows", len(rows)).Msg("merge failed")
			} else {
				res.Added = stats.Added
				s.mirror(ctx, rows)
			}
		}
	}
	res.Elapsed = s.now().Sub(start)

	log.Info().
		Msgf("unit %d/%d %s: %s fetched=%d added=%d pages=%d", idx, total, u.Key(), res.Outcome, res.Fetched, res.Added, res.Pages)
	return res
}

// finishUnit records the final result of a unit in the ledger
func (s *Service) finishUnit(ctx context.Context, res domain.UnitResult, at time.Time) {
	s.ledgerDo(logger.WithUnit(ctx, res.Unit), "finish unit", func(lctx context.Context, l domain.LedgerRepo) error {
		return l.FinishUnit(lctx, logger.RunID(ctx), res, at)
	})
}

// fetch drains the commit listing of u. Rows from pages yielded before an
// error are returned with it. A listing stopped by the page cap ends with
// errPageCap.
func (s *Service) fetch(ctx context.Context, u domain.WorkUnit) ([]record.Row, int, error) {
	uctx, cancel := guardrails.WithUnit(ctx, s.Cfg.Timeouts)
	defer cancel()

	nctx := normalize.Context{Repo: u.Repo, Branch: u.RowBranch()}
	cq := github.CommitQuery{Repo: u.Repo.FullName, Branch: u.Branch, Since: u.Since, Until: u.Until, Author: u.Author}

	var rows []record.Row
	pages := 0
	for page, err := range s.Forge.ListCommits(uctx, cq, s.Cfg.CommitPages) {
		if err != nil {
			return rows, pages, err
		}
		pages++
		rows = append(rows, normalize.Commits(page.Items, nctx)...)
		if page.Capped {
			return rows, pages, errPageCap
		}
	}
	return rows, pages, nil
}

// incremental narrows u to what changed since its last ok finish
func (s *Service) incremental(ctx context.Context, u domain.WorkUnit) domain.WorkUnit {
	if !s.Cfg.Incremental || s.Ledger == nil {
		return u
	}
	var (
		last time.Time
		ok   bool
	)
	s.ledgerDo(ctx, "last success", func(ctx context.Context, l domain.LedgerRepo) error {
		var err error
		last, ok, err = l.LastSuccess(ctx, u.Key())
		return err
	})
	if !ok {
		return u
	}
	since := last.Add(-s.Cfg.Overlap)
	if u.Since != nil && !since.After(*u.Since) {
		return u
	}
	logger.C(ctx).Debug().Time("since", since).Msg("incremental window")
	return u.WithSince(since)
}

func (s *Service) mirror(ctx context.Context, rows []record.Row) {
	if s.Mirror == nil {
		return
	}
	mctx, cancel := guardrails.ForLedger(context.WithoutCancel(ctx), s.Cfg.Timeouts)
	defer cancel()
	if err := s.Mirror.Write(mctx, rows, logger.RunID(ctx)); err != nil {
		logger.C(ctx).Warn().Err(err).Int("rows", len(rows)).Msg("mirror write failed")
	}
}

// ledgerDo runs fn in a ledger transaction when a ledger is configured.
// Transient failures are retried within the ledger timeout; anything left is
// logged and the dataset stays the source of truth.
func (s *Service) ledgerDo(ctx context.Context, op string, fn func(context.Context, domain.LedgerRepo) error) {
	if s.Ledger == nil {
		return
	}
	lctx, cancel := guardrails.ForLedger(context.WithoutCancel(ctx), s.Cfg.Timeouts)
	defer cancel()
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(ledgerRetryWait), ledgerRetries), lctx)
	err := backoff.Retry(func() error {
		err := repokit.InTx(lctx, s.DB, s.Ledger, func(l domain.LedgerRepo) error { return fn(lctx, l) })
		if err != nil && !perr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		logger.C(ctx).Warn().Err(err).Str("op", op).Msg("ledger write failed")
	}
}

// classify maps the error that ended a unit's listing to an outcome. ctx is
// the run context, so a unit budget running out is not a cancellation.
func classify(ctx context.Context, err error) domain.Outcome {
	if err == nil {
		return domain.OutcomeOK
	}
	if ctx.Err() != nil {
		return domain.OutcomeCanceled
	}
	var se *paginate.StatusError
	switch {
	case errors.Is(err, errPageCap):
		return domain.OutcomePartial
	case errors.As(err, &se):
		return domain.OutcomePartial
	case errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomePartial
	}
	return domain.OutcomeFailed
}
