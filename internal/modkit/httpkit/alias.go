// Package httpkit is what service modules register routes with. It re-exports
// the platform envelope types so modules never import the platform http
// package directly.
package httpkit

import (
	"net/http"

	phttp "commitcrawl/internal/platform/net/http"
)

type (
	Envelope = phttp.Envelope
	Page     = phttp.Page
	Response = phttp.Response
	Handler  = phttp.Handler
	Router   = phttp.Router
)

// OK wraps data in a 200 envelope
func OK(data any) Response { return phttp.OK(data) }

// Error renders err as an error envelope with its mapped status
func Error(err error) Response { return phttp.Error(err) }

// List wraps one page of items with offset paging metadata
func List(items any, total, limit, offset int) Response {
	return phttp.List(items, total, limit, offset)
}

// Call adapts a read handler. A returned Response is sent as is, any other
// value becomes the data of a 200 envelope and an error becomes an error envelope.
func Call(fn func(*http.Request) (any, error)) Handler {
	return Handle(func(r *http.Request) Response {
		out, err := fn(r)
		if err != nil {
			return Error(err)
		}
		if resp, ok := out.(Response); ok {
			return resp
		}
		return OK(out)
	})
}

// Handle adapts a Response returning function
func Handle(fn func(*http.Request) Response) Handler {
	return phttp.Handle(fn)
}
