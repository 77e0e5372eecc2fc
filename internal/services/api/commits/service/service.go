// Package service answers commit queries from the dataset file
package service

import (
	"context"
	"os"
	"sort"
	"strings"

	"commitcrawl/internal/core/record"
	"commitcrawl/internal/platform/logger"
	"commitcrawl/internal/platform/validate"
	"commitcrawl/internal/services/api/commits/domain"
)

// Service implements domain.ServicePort
type Service struct {
	data domain.Dataset
}

// New binds the service to a dataset
func New(data domain.Dataset) *Service {
	if data == nil {
		panic("commits.Service requires a dataset")
	}
	return &Service{data: data}
}

// List returns matching rows newest first. Rows without a commit date sort
// last; ties keep file order.
func (s *Service) List(ctx context.Context, q domain.Query) (domain.Page, error) {
	if q.Limit == 0 {
		q.Limit = domain.DefaultLimit
	}
	if err := validate.Struct(q); err != nil {
		return domain.Page{}, err
	}
	rows, err := s.data.Load(ctx)
	if err != nil {
		return domain.Page{}, err
	}

	match := rows[:0:0]
	for _, r := range rows {
		if keep(r, q) {
			match = append(match, r)
		}
	}
	sort.SliceStable(match, func(i, j int) bool { return newer(match[i], match[j]) })

	page := domain.Page{Total: len(match), Rows: []record.Row{}}
	if q.Offset < len(match) {
		end := min(q.Offset+q.Limit, len(match))
		page.Rows = match[q.Offset:end]
	}
	logger.C(ctx).Debug().Str("repo", q.Repo).Str("branch", q.Branch).Int("total", page.Total).Msg("commits listed")
	return page, nil
}

// Open returns the raw dataset file
func (s *Service) Open(_ context.Context) (*os.File, error) {
	return s.data.Open()
}

func keep(r record.Row, q domain.Query) bool {
	if q.Repo != "" && !strings.EqualFold(r.RepoFullName, q.Repo) {
		return false
	}
	if q.Branch != "" && r.Branch != q.Branch {
		return false
	}
	if q.Author != "" && !strings.EqualFold(r.AuthorLogin, q.Author) {
		return false
	}
	return true
}

func newer(a, b record.Row) bool {
	switch {
	case a.CommitDate == nil:
		return false
	case b.CommitDate == nil:
		return true
	default:
		return a.CommitDate.After(*b.CommitDate)
	}
}
