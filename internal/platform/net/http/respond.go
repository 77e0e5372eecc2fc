// Package http holds the router seam, the API server and the JSON envelope
// every read endpoint answers with
package http

import (
	"encoding/json"
	stdhttp "net/http"

	perr "commitcrawl/internal/platform/errors"
	pnet "commitcrawl/internal/platform/net"
)

// Envelope is the body of every JSON response. Data and Page are set on
// success; Code, Kind, Error and Field on failure.
type Envelope struct {
	StatusCode int            `json:"status_code"`
	Status     string         `json:"status"`
	RequestID  string         `json:"request_id,omitempty"`
	Data       any            `json:"data,omitempty"`
	Page       *Page          `json:"page,omitempty"`
	Code       perr.ErrorCode `json:"code,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	Field      string         `json:"field,omitempty"`
}

// Page is offset paging metadata
type Page struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// JSON writes v with status. HTML escaping is off; commit messages are
// full of angle brackets and the body is never embedded in a page.
func JSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// Response is what return style handlers produce. A Body that is an error
// decides the status itself.
type Response struct {
	Status int
	Body   any
	Page   *Page
	Header stdhttp.Header
}

// Handle adapts a Response returning handler
func Handle(h func(r *stdhttp.Request) Response) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		h(r).write(w, r)
	}
}

func (resp Response) write(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	if resp.Status == stdhttp.StatusNoContent {
		w.WriteHeader(stdhttp.StatusNoContent)
		return
	}
	env := Envelope{RequestID: pnet.RequestID(r.Context())}
	if err, ok := resp.Body.(error); ok && err != nil {
		var wire perr.Wire
		env.StatusCode, wire = perr.HTTP(err)
		env.Code, env.Kind, env.Error, env.Field = wire.Code, wire.Kind, wire.Message, wire.Field
	} else {
		env.StatusCode = resp.Status
		if env.StatusCode == 0 {
			env.StatusCode = stdhttp.StatusOK
		}
		env.Data, env.Page = resp.Body, resp.Page
	}
	env.Status = stdhttp.StatusText(env.StatusCode)
	JSON(w, env.StatusCode, env)
}

func OK(data any) Response { return Response{Status: stdhttp.StatusOK, Body: data} }

// Error lets err pick the status and fill the error fields
func Error(err error) Response { return Response{Body: err} }

// List is a 200 with one page of items
func List(items any, total, limit, offset int) Response {
	return Response{Status: stdhttp.StatusOK, Body: items, Page: &Page{Total: total, Limit: limit, Offset: offset}}
}
