// Package http serves the dataset as JSON pages and as the raw CSV file
package http

import (
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"commitcrawl/internal/modkit/httpkit"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/services/api/commits/domain"
)

// Register mounts GET /commits and GET|HEAD /commits.csv
func Register(r httpkit.Router, svc domain.ServicePort) {
	h := &handlers{svc: svc}
	httpkit.Get(r, "/commits", h.list)
	httpkit.Stream(r, "/commits.csv", h.csv)
}

type handlers struct {
	svc domain.ServicePort
}

func (h *handlers) list(r *http.Request) (any, error) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		return nil, err
	}
	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit == 0 {
		limit = domain.DefaultLimit
	}
	return httpkit.List(page.Rows, page.Total, limit, q.Offset), nil
}

// csv serves the file as is; ServeContent handles HEAD, ranges and conditional requests
func (h *handlers) csv(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Open(r.Context())
	if err != nil {
		httpkit.Handle(func(*http.Request) httpkit.Response { return httpkit.Error(err) })(w, r)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		httpkit.Handle(func(*http.Request) httpkit.Response {
			return httpkit.Error(perr.Wrap(err, perr.ErrorCodeIO, "stat dataset"))
		})(w, r)
		return
	}
	name := filepath.Base(f.Name())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func parseQuery(v url.Values) (domain.Query, error) {
	q := domain.Query{
		Repo:   v.Get("repo"),
		Branch: v.Get("branch"),
		Author: v.Get("author"),
	}
	var err error
	if q.Limit, err = intParam(v, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(v, "offset"); err != nil {
		return q, err
	}
	return q, nil
}

func intParam(v url.Values, name string) (int, error) {
	s := v.Get(name)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, perr.WithField(perr.InvalidArgf("%s must be an integer", name), name)
	}
	return n, nil
}
