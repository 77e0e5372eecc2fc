// Package module wires the crawl service: forge client, quota governor,
// walker, dataset store and the optional ledger and mirror
package module

import (
	"context"
	"fmt"
	"os"
	"time"

	"commitcrawl/internal/adapters/forge/github"
	"commitcrawl/internal/core/quota"
	"commitcrawl/internal/modkit"
	"commitcrawl/internal/modkit/repokit"
	"commitcrawl/internal/platform/logger"
	phttp "commitcrawl/internal/platform/net/http"
	"commitcrawl/internal/services/crawl/domain"
	"commitcrawl/internal/services/crawl/guardrails"
	crawlhttp "commitcrawl/internal/services/crawl/http"
	"commitcrawl/internal/services/crawl/repo"
	"commitcrawl/internal/services/crawl/service"
	"commitcrawl/internal/services/crawl/walker"
	"commitcrawl/internal/services/dataset"
	"commitcrawl/internal/services/dataset/mirror"
)

const (
	mergeTimeout  = 5 * time.Minute
	ledgerTimeout = 10 * time.Second
	// a lease row held by a live crawl should fail fast, not queue
	leaseLockWait = 2 * time.Second
)

// Ports defines the crawl module ports
type Ports struct {
	Runner domain.RunnerPort
	Runs   domain.RunsPort
}

// Module implements the crawl module
type Module struct {
	deps  modkit.Deps
	opts  Options
	built modkit.Built
	ports Ports
	store *dataset.Store
}

// New validates opts and wires the crawl service. The ledger schema and the
// mirror table are created when those backends are present.
func New(ctx context.Context, deps modkit.Deps, opts Options) (*Module, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("crawl")

	gov := quota.New(quota.Options{
		LowWater:   opts.LowWater,
		MinBackoff: opts.MinBackoff,
		RPS:        opts.RPS,
	})
	gh := github.NewClient(github.Options{
		BaseURL:    opts.BaseURL,
		Token:      opts.Token,
		UserAgent:  opts.Login,
		Timeout:    opts.Timeout,
		PerPage:    opts.PerPage,
		MaxRetries: opts.Retries,
	}, gov)

	ds, err := dataset.New(dataset.Options{Path: opts.Output, Key: opts.Key})
	if err != nil {
		return nil, err
	}

	d := service.Deps{
		Forge:  gh,
		Walker: walkerFor(gh, opts),
		Store:  ds,
	}

	if deps.HasMirror() {
		mr, err := mirror.New(deps.CH, opts.MirrorTable)
		if err != nil {
			return nil, err
		}
		if err := mr.EnsureTable(ctx); err != nil {
			return nil, err
		}
		d.Mirror = mr
		log.Info().Str("table", mr.Table()).Msg("mirror enabled")
	}

	if deps.HasLedger() {
		if err := repo.EnsureSchema(ctx, deps.PG); err != nil {
			return nil, err
		}
		db := repokit.WithHooks(deps.PG, repokit.Timeouts(ledgerTimeout, leaseLockWait))
		d.DB = db
		d.Ledger = repo.NewPG()
		d.Lease = guardrails.MakeOutputLease(db, holder(), opts.LeaseTTL)
		log.Info().Msg("run ledger enabled")
	}

	svc := service.New(d, service.Config{
		Mode:        opts.CrawlMode(),
		Output:      opts.Output,
		Workers:     opts.Workers,
		CommitPages: opts.CommitPageCap(),
		MergeAtEnd:  opts.MergeAtEnd,
		Incremental: opts.Incremental,
		Overlap:     opts.Overlap,
		Timeouts: guardrails.Timeouts{
			Unit:   opts.UnitTimeout,
			Merge:  mergeTimeout,
			Ledger: ledgerTimeout,
		},
	})

	m := &Module{deps: deps, opts: opts, store: ds}
	m.ports = Ports{Runner: svc, Runs: svc}
	m.built = modkit.Build(
		modkit.WithName("crawl"),
		modkit.WithPorts(m.ports),
		modkit.WithRegister(func(r phttp.Router) { crawlhttp.Register(r, svc) }),
	)
	return m, nil
}

// Name returns the module name
func (m *Module) Name() string { return m.built.Name }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Options returns the options the module was built with
func (m *Module) Options() Options { return m.opts }

// Dataset returns the dataset store the module merges into
func (m *Module) Dataset() *dataset.Store { return m.store }

// MountRoutes mounts GET /runs
func (m *Module) MountRoutes(r phttp.Router) { modkit.Mount(r, m.built) }

func walkerFor(gh *github.Client, o Options) domain.Walker {
	win := walker.Window{Since: o.Since, Until: o.Until, Author: o.Author}
	if o.CrawlMode() == domain.ModeBranches {
		return walker.Branches{Source: gh, Repo: o.Repo, Pages: o.BranchPages, Window: win}
	}
	return walker.Repos{Source: gh, Pages: o.RepoPages, Window: win}
}

// holder names this process in the lease table
func holder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
