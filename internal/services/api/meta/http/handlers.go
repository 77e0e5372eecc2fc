// Package http serves liveness, readiness and build info for the API process
package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"

	"commitcrawl/internal/core/version"
	"commitcrawl/internal/modkit/httpkit"
)

const readyBudget = 2 * time.Second

// Check states
const (
	StatusOK      = "ok"
	StatusFail    = "fail"
	StatusSkipped = "skipped"
	StatusUnknown = "unknown"
)

// Pinger is any backend that can report its own reachability
type Pinger interface {
	Ping(context.Context) error
}

// Backend is one optional store readiness looks at; a nil Conn means the
// backend is disabled for this process
type Backend struct {
	Name string
	Conn any
}

// Deps are the handler dependencies
type Deps struct {
	Service  string
	Started  time.Time
	Dataset  string
	Backends []Backend
}

// Check is the outcome of one readiness probe
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Readiness is the /readyz body; Status is fail when any check failed
type Readiness struct {
	Status string    `json:"status"`
	Checks []Check   `json:"checks"`
	At     time.Time `json:"at"`
}

// Health is the /healthz body
type Health struct {
	OK      bool      `json:"ok"`
	Service string    `json:"service"`
	Started time.Time `json:"started"`
	Uptime  int64     `json:"uptime_s"`
}

type handlers struct {
	d   Deps
	now func() time.Time
}

// Register mounts /healthz, /readyz and /version on r
func Register(r httpkit.Router, d Deps) {
	h := handlers{d: d, now: time.Now}
	httpkit.Get(r, "/healthz", h.health)
	httpkit.Get(r, "/readyz", h.ready)
	httpkit.Get(r, "/version", func(*http.Request) (any, error) { return version.Info(), nil })
}

func (h handlers) health(*http.Request) (any, error) {
	return Health{
		OK:      true,
		Service: h.d.Service,
		Started: h.d.Started.UTC(),
		Uptime:  int64(h.now().Sub(h.d.Started).Seconds()),
	}, nil
}

// ready answers 503 when a check fails so load balancers can act on the
// status line alone
func (h handlers) ready(r *http.Request) (any, error) {
	ctx, cancel := context.WithTimeout(r.Context(), readyBudget)
	defer cancel()

	out := Readiness{Status: StatusOK, At: h.now().UTC()}
	out.Checks = append(out.Checks, datasetCheck(h.d.Dataset))
	for _, b := range h.d.Backends {
		out.Checks = append(out.Checks, ping(ctx, b))
	}

	status := http.StatusOK
	for _, c := range out.Checks {
		if c.Status == StatusFail {
			out.Status, status = StatusFail, http.StatusServiceUnavailable
			break
		}
	}
	return httpkit.Response{Status: status, Body: out}, nil
}

func ping(ctx context.Context, b Backend) Check {
	c := Check{Name: b.Name}
	p, ok := b.Conn.(Pinger)
	switch {
	case b.Conn == nil:
		c.Status = StatusSkipped
	case !ok:
		c.Status = StatusUnknown
	default:
		if err := p.Ping(ctx); err != nil {
			c.Status, c.Error = StatusFail, err.Error()
		} else {
			c.Status = StatusOK
		}
	}
	return c
}

// datasetCheck skips a dataset that does not exist yet: nothing was crawled
func datasetCheck(path string) Check {
	c := Check{Name: "dataset", Status: StatusOK}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Status = StatusSkipped
		} else {
			c.Status, c.Error = StatusFail, err.Error()
		}
	}
	return c
}
