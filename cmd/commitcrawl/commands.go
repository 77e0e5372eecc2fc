package main

import (
	"context"
	"fmt"
	"io"

	"commitcrawl/internal/modkit"
	"commitcrawl/internal/platform/config"
	"commitcrawl/internal/platform/logger"
	phttp "commitcrawl/internal/platform/net/http"
	"commitcrawl/internal/platform/store"
	"commitcrawl/internal/services/api"
	crawlmod "commitcrawl/internal/services/crawl/module"
	"commitcrawl/internal/services/crawl/report"

	"github.com/urfave/cli/v2"
)

func crawlCmd() *cli.Command {
	return &cli.Command{
		Name:  "crawl",
		Usage: "fetch commits and merge them into the dataset",
		Flags: crawlFlags(),
		Action: func(c *cli.Context) error {
			if err := bindFlags(c, githubBindings, crawlBindings, outputBindings, storeBindings); err != nil {
				return err
			}
			return withCrawl(c.Context, roleCrawl, func(_ modkit.Deps, m *crawlmod.Module) error {
				return crawl(c.Context, c.App.Writer, m)
			})
		},
	}
}

func probeCmd() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "check the token and print the login and quota",
		Flags: githubFlags(),
		Action: func(c *cli.Context) error {
			if err := bindFlags(c, githubBindings); err != nil {
				return err
			}
			// probe never touches the ledger or the mirror
			opts := crawlmod.FromConfig(config.New())
			if err := opts.RequireToken(); err != nil {
				return err
			}
			m, err := crawlmod.New(c.Context, modkit.Deps{Cfg: config.New()}, opts)
			if err != nil {
				return err
			}
			return probe(c.Context, c.App.Writer, m)
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the dataset and run history over a read-only API",
		Flags: serveFlags(),
		Action: func(c *cli.Context) error {
			if err := bindFlags(c, outputBindings, storeBindings, serveBindings); err != nil {
				return err
			}
			return withCrawl(c.Context, roleServe, func(deps modkit.Deps, m *crawlmod.Module) error {
				srv := phttp.NewServer(deps.Cfg)
				api.Mount(srv.Router(), api.Options{Deps: deps, Crawl: m})
				logger.Named("http").Info().Str("addr", srv.Addr()).Str("dataset", m.Dataset().Path()).Msg("serving")
				return srv.Run(c.Context)
			})
		},
	}
}

// roles name the process to the ledger and the mirror
const (
	roleCrawl = "crawl"
	roleServe = "serve"
)

// withCrawl opens the optional backends, builds the crawl module and hands
// both to fn. Only a crawl needs a token.
func withCrawl(ctx context.Context, role string, fn func(modkit.Deps, *crawlmod.Module) error) error {
	cfg := config.New()
	log := logger.Get()

	opts := crawlmod.FromConfig(cfg)
	if role == roleCrawl {
		if err := opts.RequireToken(); err != nil {
			return err
		}
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	st, err := store.Open(ctx, store.FromConfig(cfg, role), store.WithLogger(*log))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.WithoutCancel(ctx)); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.FromStore(cfg, st)
	m, err := crawlmod.New(ctx, deps, opts)
	if err != nil {
		return err
	}
	return fn(deps, m)
}

// crawl runs once and renders the report. Unit failures do not fail the command.
func crawl(ctx context.Context, w io.Writer, m *crawlmod.Module) error {
	runner := modkit.MustPortsOf[crawlmod.Ports](m).Runner
	rep, err := runner.Run(ctx)
	if len(rep.Units) > 0 || rep.Rows > 0 {
		if rerr := report.Render(w, rep); rerr != nil {
			logger.Named("crawl").Warn().Err(rerr).Msg("render report")
		}
	}
	return err
}

func probe(ctx context.Context, w io.Writer, m *crawlmod.Module) error {
	runner := modkit.MustPortsOf[crawlmod.Ports](m).Runner
	user, q, err := runner.Probe(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "login: %s\nquota: %s\n", user.Login, report.Quota(q))
	return err
}
