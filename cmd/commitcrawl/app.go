package main

import (
	"fmt"
	"os"

	"commitcrawl/internal/core/version"

	"github.com/urfave/cli/v2"
)

// binding maps a flag onto the env key its module reads. Flags only write
// the env when set, so the environment stays the default layer.
type binding struct {
	flag string
	env  string
	// also forces an extra key to "true", e.g. enabling a backend by URL
	enable string
}

var (
	githubBindings = []binding{
		{flag: "token", env: "CORE_GITHUB_TOKEN"},
		{flag: "login", env: "CORE_GITHUB_LOGIN"},
		{flag: "base-url", env: "CORE_GITHUB_BASE_URL"},
		{flag: "rps", env: "CORE_GITHUB_RPS"},
	}
	crawlBindings = []binding{
		{flag: "mode", env: "CORE_CRAWL_MODE"},
		{flag: "repo", env: "CORE_CRAWL_REPO"},
		{flag: "since", env: "CORE_CRAWL_SINCE"},
		{flag: "until", env: "CORE_CRAWL_UNTIL"},
		{flag: "author", env: "CORE_CRAWL_AUTHOR"},
		{flag: "workers", env: "CORE_CRAWL_WORKERS"},
		{flag: "commit-pages", env: "CORE_CRAWL_COMMIT_PAGES"},
		{flag: "merge-at-end", env: "CORE_CRAWL_MERGE_AT_END"},
		{flag: "incremental", env: "CORE_CRAWL_INCREMENTAL"},
		{flag: "unit-timeout", env: "CORE_CRAWL_UNIT_TIMEOUT"},
	}
	outputBindings = []binding{
		{flag: "output", env: "CORE_CRAWL_OUTPUT"},
		{flag: "key", env: "CORE_CRAWL_KEY"},
	}
	storeBindings = []binding{
		{flag: "ledger-url", env: "CORE_LEDGER_URL", enable: "CORE_LEDGER_ENABLED"},
		{flag: "mirror-url", env: "CORE_MIRROR_URL", enable: "CORE_MIRROR_ENABLED"},
	}
	serveBindings = []binding{
		{flag: "addr", env: "CORE_SERVE_ADDR"},
		{flag: "cors-origins", env: "CORE_SERVE_CORS_ORIGINS"},
	}
)

// App builds the commitcrawl CLI
func App() *cli.App {
	return &cli.App{
		Name:    version.Service,
		Usage:   "incremental GitHub commit crawler",
		Version: version.Info().Version,
		Commands: []*cli.Command{
			crawlCmd(),
			probeCmd(),
			serveCmd(),
		},
	}
}

func githubFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "token", Aliases: []string{"t"}, Usage: "GitHub token (CORE_GITHUB_TOKEN)"},
		&cli.StringFlag{Name: "login", Usage: "account login sent as User-Agent (CORE_GITHUB_LOGIN)"},
		&cli.StringFlag{Name: "base-url", Usage: "API root (CORE_GITHUB_BASE_URL)"},
		&cli.Float64Flag{Name: "rps", Usage: "pace requests per second, 0 disables (CORE_GITHUB_RPS)"},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "dataset CSV path (CORE_CRAWL_OUTPUT)"},
		&cli.StringFlag{Name: "key", Usage: "dedup column (CORE_CRAWL_KEY)"},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "ledger-url", Usage: "postgres URL; enables the run ledger (CORE_LEDGER_URL)"},
		&cli.StringFlag{Name: "mirror-url", Usage: "clickhouse URL; enables the mirror (CORE_MIRROR_URL)"},
	}
}

func crawlFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "repos | branches (CORE_CRAWL_MODE)"},
		&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "owner/name for branches mode (CORE_CRAWL_REPO)"},
		&cli.StringFlag{Name: "since", Usage: "ISO-8601 lower bound, UTC (CORE_CRAWL_SINCE)"},
		&cli.StringFlag{Name: "until", Usage: "ISO-8601 upper bound, UTC (CORE_CRAWL_UNTIL)"},
		&cli.StringFlag{Name: "author", Usage: "only commits by this login or email (CORE_CRAWL_AUTHOR)"},
		&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "units fetched in parallel (CORE_CRAWL_WORKERS)"},
		&cli.IntFlag{Name: "commit-pages", Usage: "commit page cap per unit (CORE_CRAWL_COMMIT_PAGES)"},
		&cli.BoolFlag{Name: "merge-at-end", Usage: "buffer rows and merge once (CORE_CRAWL_MERGE_AT_END)"},
		&cli.BoolFlag{Name: "incremental", Usage: "resume each unit from its last ok run (CORE_CRAWL_INCREMENTAL)"},
		&cli.DurationFlag{Name: "unit-timeout", Usage: "budget per unit (CORE_CRAWL_UNIT_TIMEOUT)"},
	}
	flags = append(flags, githubFlags()...)
	flags = append(flags, outputFlags()...)
	return append(flags, storeFlags()...)
}

func serveFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "listen address (CORE_SERVE_ADDR)"},
		&cli.StringFlag{Name: "cors-origins", Usage: "comma separated allowed origins (CORE_SERVE_CORS_ORIGINS)"},
	}
	flags = append(flags, outputFlags()...)
	return append(flags, storeFlags()...)
}

// bindFlags copies the flags set on c into the environment
func bindFlags(c *cli.Context, groups ...[]binding) error {
	for _, g := range groups {
		for _, b := range g {
			if !c.IsSet(b.flag) {
				continue
			}
			if err := os.Setenv(b.env, fmt.Sprint(c.Value(b.flag))); err != nil {
				return err
			}
			if b.enable != "" {
				if err := os.Setenv(b.enable, "true"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
