// Package modkit is how service modules describe themselves to the API:
// a name, an optional prefix and middleware, the routes they register and
// the ports other code may pull from them
package modkit

import (
	"net/http"

	phttp "commitcrawl/internal/platform/net/http"
	pstrings "commitcrawl/internal/platform/strings"
)

// Module is a mountable unit of the API
type Module interface {
	Name() string
	MountRoutes(r phttp.Router)
	// Ports is a module specific bundle; read it with PortsOf
	Ports() any
}

// Built is the resolved description of a module
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Ports    any
	Register func(phttp.Router)
}

// Option edits a module description before it is built
type Option func(*Built)

func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix scopes the module under prefix; "runs", "/runs" and "runs/" are equal
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends module scoped middleware, outermost first
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts sets the bundle Ports returns
func WithPorts[T any](p T) Option { return func(b *Built) { b.Ports = p } }

// WithRegister sets the function that attaches the module's endpoints
func WithRegister(fn func(phttp.Router)) Option { return func(b *Built) { b.Register = fn } }

// Build applies opts in order. The prefix is normalized, a missing
// register is a no op and the middleware slice is never shared with opts.
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		o(&b)
	}
	if b.Prefix != "" {
		b.Prefix = pstrings.MustPrefix(b.Prefix)
	}
	if b.Register == nil {
		b.Register = func(phttp.Router) {}
	}
	b.Mw = append([]func(http.Handler) http.Handler(nil), b.Mw...)
	return b
}

// Mount registers b's endpoints on r, under b.Prefix when set and behind
// b.Mw when given. With neither, routes land on r directly.
func Mount(r phttp.Router, b Built) {
	scoped := func(sub phttp.Router) {
		if len(b.Mw) > 0 {
			sub.Use(b.Mw...)
		}
		b.Register(sub)
	}
	switch {
	case b.Prefix != "":
		r.Route(b.Prefix, scoped)
	case len(b.Mw) > 0:
		r.Group(scoped)
	default:
		b.Register(r)
	}
}
