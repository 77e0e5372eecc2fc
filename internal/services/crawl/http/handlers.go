// Package http exposes recorded crawl runs over the read-only API
package http

import (
	"net/http"
	"strconv"

	"commitcrawl/internal/modkit/httpkit"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/services/crawl/domain"
)

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Register mounts GET /runs
func Register(r httpkit.Router, runs domain.RunsPort) {
	h := handlers{runs: runs}
	httpkit.Get(r, "/runs", h.list)
}

type handlers struct {
	runs domain.RunsPort
}

func (h handlers) list(r *http.Request) (any, error) {
	limit := defaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxLimit {
			return nil, perr.WithField(perr.InvalidArgf("limit must be between 1 and %d", maxLimit), "limit")
		}
		limit = n
	}
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.RunRecord{}
	}
	return httpkit.List(runs, len(runs), limit, 0), nil
}
