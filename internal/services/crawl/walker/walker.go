// Package walker enumerates the work units of a crawl
package walker

import (
	"context"
	"errors"
	"iter"
	"strings"
	"time"

	"commitcrawl/internal/adapters/forge/github"
	"commitcrawl/internal/core/paginate"
	"commitcrawl/internal/core/record"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
	"commitcrawl/internal/services/crawl/domain"
)

// DefaultPages caps repository and branch listings
const DefaultPages = 50

// Window is the commit filter every unit carries
type Window struct {
	Since  *time.Time
	Until  *time.Time
	Author string
}

func (w Window) unit(meta record.RepoMeta, branch string) domain.WorkUnit {
	return domain.WorkUnit{Repo: meta, Branch: branch, Since: w.Since, Until: w.Until, Author: w.Author}
}

// RepoLister lists the repositories of the authenticated account
type RepoLister interface {
	ListUserRepos(ctx context.Context, maxPages int) iter.Seq2[paginate.Page[record.RepoMeta], error]
}

// BranchLister reads one repository and its branches
type BranchLister interface {
	GetRepo(ctx context.Context, fullName string) (record.RepoMeta, error)
	ListBranches(ctx context.Context, fullName string, maxPages int) iter.Seq2[paginate.Page[github.Branch], error]
}

// Repos yields one unscoped unit per accessible repository
type Repos struct {
	Source RepoLister
	Pages  int
	Window Window
}

// Walk implements domain.Walker. Repositories already listed are returned
// with the error that cut the listing short.
func (w Repos) Walk(ctx context.Context) ([]domain.WorkUnit, error) {
	log := logger.C(ctx)
	var units []domain.WorkUnit
	seen := map[string]bool{}
	for page, err := range w.Source.ListUserRepos(ctx, pages(w.Pages)) {
		if err != nil {
			return units, perr.Wrap(err, codeFor(err), "list repositories")
		}
		for _, meta := range page.Items {
			if meta.FullName == "" || seen[strings.ToLower(meta.FullName)] {
				continue
			}
			seen[strings.ToLower(meta.FullName)] = true
			units = append(units, w.Window.unit(meta, ""))
		}
		log.Debug().Int("page", page.Index).Int("units", len(units)).Msg("repositories listed")
	}
	return units, nil
}

// Branches yields one unit per branch of a single repository
type Branches struct {
	Source BranchLister
	Repo   string
	Pages  int
	Window Window
}

// Walk implements domain.Walker. A repository that cannot be read is an
// error with no units.
func (w Branches) Walk(ctx context.Context) ([]domain.WorkUnit, error) {
	meta, err := w.Source.GetRepo(ctx, w.Repo)
	if err != nil {
		return nil, err
	}
	if meta.FullName == "" {
		meta.FullName = w.Repo
	}

	var units []domain.WorkUnit
	for page, err := range w.Source.ListBranches(ctx, meta.FullName, pages(w.Pages)) {
		if err != nil {
			return units, perr.Wrap(err, codeFor(err), "list branches")
		}
		for _, b := range page.Items {
			if b.Name == "" {
				continue
			}
			units = append(units, w.Window.unit(meta, b.Name))
		}
	}
	logger.C(ctx).Debug().Str("repo", meta.FullName).Int("branches", len(units)).Msg("branches listed")
	return units, nil
}

func pages(n int) int {
	if n <= 0 {
		return DefaultPages
	}
	return n
}

// codeFor keeps a coded error's code and classifies the rest
func codeFor(err error) perr.ErrorCode {
	if e, ok := perr.As(err); ok {
		return e.Code()
	}
	var se *paginate.StatusError
	if errors.As(err, &se) {
		return perr.ErrorCodeUpstream
	}
	return perr.ErrorCodeUnavailable
}
