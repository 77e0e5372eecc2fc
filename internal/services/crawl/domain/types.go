// Package domain holds the work units, outcomes and run records of a crawl
package domain

import (
	"time"

	"commitcrawl/internal/adapters/forge/github"
	"commitcrawl/internal/core/quota"
	"commitcrawl/internal/core/record"
)

// User re-exports the authenticated account returned by the probe
type User = github.User

// Mode selects how units are enumerated
type Mode string

const (
	// ModeRepos crawls the default branch of every accessible repository
	ModeRepos Mode = "repos"
	// ModeBranches crawls every branch of one repository
	ModeBranches Mode = "branches"
)

// WorkUnit is one repository, optionally narrowed to a branch, fetched in a
// single pass. Units are values; adjust them with the With* helpers.
type WorkUnit struct {
	Repo   record.RepoMeta
	Branch string
	Since  *time.Time
	Until  *time.Time
	Author string
}

// Key is owner/name, or owner/name@branch for branch scoped units
func (u WorkUnit) Key() string {
	if u.Branch == "" {
		return u.Repo.FullName
	}
	return u.Repo.FullName + "@" + u.Branch
}

// RowBranch is the branch recorded on rows fetched for u
func (u WorkUnit) RowBranch() string {
	if u.Branch != "" {
		return u.Branch
	}
	return u.Repo.DefaultBranch
}

// WithSince returns a copy of u starting at since
func (u WorkUnit) WithSince(since time.Time) WorkUnit {
	s := since.UTC()
	u.Since = &s
	return u
}

// Outcome is how a unit ended
type Outcome string

const (
	// OutcomeOK means every page was fetched and merged
	OutcomeOK Outcome = "ok"
	// OutcomePartial means a status failure cut the listing short; the pages
	// fetched before it were merged
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means a transport, decode or merge error; nothing was merged
	OutcomeFailed Outcome = "failed"
	// OutcomeCanceled means the run was canceled before the unit finished
	OutcomeCanceled Outcome = "canceled"
)

// Outcomes lists every outcome in report order
var Outcomes = []Outcome{OutcomeOK, OutcomePartial, OutcomeFailed, OutcomeCanceled}

// UnitResult is the per unit line of a report
type UnitResult struct {
	Index   int
	Unit    string
	Outcome Outcome
	Since   *time.Time
	Pages   int
	Fetched int
	Added   int
	Elapsed time.Duration
	Err     string
}

// Report summarizes a run
type Report struct {
	RunID    string
	Mode     Mode
	Login    string
	Output   string
	Started  time.Time
	Finished time.Time

	Units   []UnitResult
	Fetched int
	Added   int
	Before  int
	Rows    int

	Quota quota.State
}

// Count returns how many units ended with o
func (r Report) Count(o Outcome) int {
	n := 0
	for _, u := range r.Units {
		if u.Outcome == o {
			n++
		}
	}
	return n
}

// Status is the run level verdict derived from unit outcomes
func (r Report) Status() string {
	switch {
	case r.Count(OutcomeCanceled) > 0:
		return "canceled"
	case r.Count(OutcomeFailed) > 0 || r.Count(OutcomePartial) > 0:
		return "degraded"
	default:
		return "ok"
	}
}

// RunRecord is a run as stored in the ledger
type RunRecord struct {
	ID         string     `json:"id"`
	Mode       Mode       `json:"mode"`
	Login      string     `json:"login"`
	Output     string     `json:"output"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Units      int        `json:"units"`
	OK         int        `json:"ok"`
	Partial    int        `json:"partial"`
	Failed     int        `json:"failed"`
	Canceled   int        `json:"canceled"`
	Fetched    int        `json:"fetched"`
	Added      int        `json:"added"`
	Rows       int        `json:"rows"`
}

// Record converts a finished report into its ledger row
func (r Report) Record() RunRecord {
	fin := r.Finished
	rec := RunRecord{
		ID:        r.RunID,
		Mode:      r.Mode,
		Login:     r.Login,
		Output:    r.Output,
		Status:    r.Status(),
		StartedAt: r.Started,
		Units:     len(r.Units),
		OK:        r.Count(OutcomeOK),
		Partial:   r.Count(OutcomePartial),
		Failed:    r.Count(OutcomeFailed),
		Canceled:  r.Count(OutcomeCanceled),
		Fetched:   r.Fetched,
		Added:     r.Added,
		Rows:      r.Rows,
	}
	if !fin.IsZero() {
		rec.FinishedAt = &fin
	}
	return rec
}
