package module

import (
	"strings"
	"time"

	"commitcrawl/internal/platform/config"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/validate"
	"commitcrawl/internal/services/crawl/domain"
	"commitcrawl/internal/services/dataset"
)

// defaultOverlap is how far an incremental since reaches back past the last
// ok finish. GitHub filters since on the commit date, so a commit pushed late
// with an older date is only picked up while it falls inside the overlap.
const defaultOverlap = 72 * time.Hour

// commit page caps when CORE_CRAWL_COMMIT_PAGES is unset
const (
	branchesCommitPages = 500
	reposCommitPages    = 200
)

// Options holds the crawl, forge and quota settings
type Options struct {
	// CORE_GITHUB_*
	Token   string        `name:"token"`
	Login   string        `name:"login"`
	BaseURL string        `name:"base_url" validate:"required,url"`
	PerPage int           `name:"per_page" validate:"min=1,max=100"`
	Timeout time.Duration `name:"timeout" validate:"min=0"`
	Retries int           `name:"retries" validate:"min=0"`
	RPS     float64       `name:"rps" validate:"min=0"`

	// CORE_QUOTA_*
	LowWater   int           `name:"low_water" validate:"min=0"`
	MinBackoff time.Duration `name:"min_backoff" validate:"min=0"`

	// CORE_CRAWL_*
	Mode        string        `name:"mode" validate:"oneof=repos branches"`
	Repo        string        `name:"repo" validate:"required_if=Mode branches"`
	Since       *time.Time    `name:"since"`
	Until       *time.Time    `name:"until"`
	Author      string        `name:"author"`
	Output      string        `name:"output" validate:"required"`
	Key         string        `name:"key" validate:"required"`
	Workers     int           `name:"workers" validate:"min=1,max=64"`
	RepoPages   int           `name:"repo_pages" validate:"min=1"`
	BranchPages int           `name:"branch_pages" validate:"min=1"`
	CommitPages int           `name:"commit_pages" validate:"min=0"`
	MergeAtEnd  bool          `name:"merge_at_end"`
	Incremental bool          `name:"incremental"`
	Overlap     time.Duration `name:"overlap" validate:"min=0"`
	UnitTimeout time.Duration `name:"unit_timeout" validate:"min=0"`
	LeaseTTL    time.Duration `name:"lease_ttl" validate:"min=0"`

	// CORE_MIRROR_TABLE
	MirrorTable string `name:"mirror_table"`
}

// FromConfig reads CORE_GITHUB_*, CORE_QUOTA_* and CORE_CRAWL_*
func FromConfig(cfg config.Conf) Options {
	gh := cfg.Prefix("CORE_GITHUB_")
	q := cfg.Prefix("CORE_QUOTA_")
	cr := cfg.Prefix("CORE_CRAWL_")
	o := Options{
		Token:   gh.MayString("TOKEN", ""),
		Login:   gh.MayString("LOGIN", ""),
		BaseURL: gh.MayString("BASE_URL", "https://api.github.com"),
		PerPage: gh.MayInt("PER_PAGE", 100),
		Timeout: gh.MayDuration("TIMEOUT", 30*time.Second),
		Retries: gh.MayInt("RETRIES", 4),
		RPS:     gh.MayFloat64("RPS", 0),

		LowWater:   q.MayInt("LOW_WATER", 10),
		MinBackoff: q.MayDuration("MIN_BACKOFF", 10*time.Second),

		Mode:        strings.ToLower(cr.MayString("MODE", string(domain.ModeRepos))),
		Repo:        cr.MayString("REPO", ""),
		Since:       cr.MayTime("SINCE"),
		Until:       cr.MayTime("UNTIL"),
		Author:      cr.MayString("AUTHOR", ""),
		Output:      cr.MayString("OUTPUT", "commits.csv"),
		Key:         cr.MayString("KEY", dataset.DefaultKey),
		Workers:     cr.MayInt("WORKERS", 1),
		RepoPages:   cr.MayInt("REPO_PAGES", 50),
		BranchPages: cr.MayInt("BRANCH_PAGES", 50),
		CommitPages: cr.MayInt("COMMIT_PAGES", 0),
		MergeAtEnd:  cr.MayBool("MERGE_AT_END", false),
		Incremental: cr.MayBool("INCREMENTAL", false),
		Overlap:     cr.MayDuration("OVERLAP", defaultOverlap),
		UnitTimeout: cr.MayDuration("UNIT_TIMEOUT", 30*time.Minute),
		LeaseTTL:    cr.MayDuration("LEASE_TTL", 6*time.Hour),

		MirrorTable: cfg.Prefix("CORE_MIRROR_").MayString("TABLE", "commits"),
	}
	return o
}

// Validate checks everything but the credential
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	if o.Repo != "" && !validate.RepoSlug(o.Repo) {
		return perr.WithField(perr.InvalidArgf("repo must look like owner/name"), "repo")
	}
	if o.Since != nil && o.Until != nil && o.Until.Before(*o.Since) {
		return perr.WithField(perr.InvalidArgf("until %s is before since %s",
			o.Until.Format(time.RFC3339), o.Since.Format(time.RFC3339)), "until")
	}
	return nil
}

// RequireToken fails when no forge token is configured
func (o Options) RequireToken() error {
	if strings.TrimSpace(o.Token) == "" {
		return perr.WithField(perr.InvalidArgf("a GitHub token is required (CORE_GITHUB_TOKEN or --token)"), "token")
	}
	return nil
}

// CrawlMode returns the walk mode
func (o Options) CrawlMode() domain.Mode { return domain.Mode(o.Mode) }

// CommitPageCap returns the per unit commit page cap, defaulting by mode
func (o Options) CommitPageCap() int {
	if o.CommitPages > 0 {
		return o.CommitPages
	}
	if o.CrawlMode() == domain.ModeBranches {
		return branchesCommitPages
	}
	return reposCommitPages
}
