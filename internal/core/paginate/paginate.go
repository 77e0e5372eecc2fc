// Package paginate walks Link-header paginated JSON array endpoints.
//
// Pages is lazy: a page is fetched only when the consumer asks for it, and a
// consumer that stops ranging stops the walk. Admission, retries and quota
// bookkeeping belong to the Getter.
package paginate

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"

	perr "commitcrawl/internal/platform/errors"
)

// bodyTail bounds the response body kept on a StatusError
const bodyTail = 2048

// Request names one page. The first page of a walk is addressed by Path and
// Query; every later page by the absolute URL the server handed back.
type Request struct {
	Path  string
	Query url.Values
	URL   string
}

// Target renders the request against base
func (r Request) Target(base string) string {
	if r.URL != "" {
		return r.URL
	}
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		u += "?" + r.Query.Encode()
	}
	return u
}

// Response is a fully read response
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// OK reports a 2xx status
func (r Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Getter issues one GET. A returned error means no usable response exists;
// an HTTP failure status is a Response, not an error.
type Getter interface {
	Get(ctx context.Context, req Request) (Response, error)
}

// GetterFunc adapts a function to Getter
type GetterFunc func(ctx context.Context, req Request) (Response, error)

// Get calls f
func (f GetterFunc) Get(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Page is one decoded page of a walk
type Page[T any] struct {
	Index int
	Items []T
	Next  string
	// Capped marks the last page of a walk stopped by maxPages while the
	// upstream still had a next link
	Capped bool
}

// StatusError is a non-2xx response that ended a walk
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.Status, e.Body)
}

// HTTPStatus returns the upstream status
func (e *StatusError) HTTPStatus() int { return e.Status }

// NewStatusError builds a StatusError keeping at most bodyTail bytes of body
func NewStatusError(resp Response) *StatusError {
	b := resp.Body
	if len(b) > bodyTail {
		b = b[:bodyTail]
	}
	return &StatusError{Status: resp.Status, URL: resp.URL, Body: strings.TrimSpace(string(b))}
}

// Pages yields the pages of a walk starting at first, in order. The walk ends
// after the page with no next link, after maxPages pages (maxPages <= 0 is
// uncapped; the page that hits the cap is marked Capped), or after yielding an
// error. Pages yielded before an error stay
// valid.
func Pages[T any](ctx context.Context, g Getter, first Request, maxPages int) iter.Seq2[Page[T], error] {
	return func(yield func(Page[T], error) bool) {
		req := first
		for idx := 1; ; idx++ {
			if err := ctx.Err(); err != nil {
				yield(Page[T]{}, err)
				return
			}

			resp, err := g.Get(ctx, req)
			if err != nil {
				yield(Page[T]{}, err)
				return
			}
			if !resp.OK() {
				yield(Page[T]{}, NewStatusError(resp))
				return
			}

			var items []T
			if err := json.Unmarshal(resp.Body, &items); err != nil {
				yield(Page[T]{}, perr.Wrapf(err, perr.ErrorCodeDecode, "decode page %d of %s", idx, resp.URL))
				return
			}

			next := NextLink(resp.Header.Get("Link"))
			capped := false
			if maxPages > 0 && idx >= maxPages && next != "" {
				next, capped = "", true
			}
			if !yield(Page[T]{Index: idx, Items: items, Next: next, Capped: capped}, nil) {
				return
			}
			if next == "" {
				return
			}
			req = Request{URL: next}
		}
	}
}

// Collect drains a walk. It returns every item seen and the error that ended
// the walk, if any.
func Collect[T any](seq iter.Seq2[Page[T], error]) ([]T, error) {
	var out []T
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p.Items...)
	}
	return out, nil
}

// NextLink extracts the rel="next" target from a Link header value
func NextLink(h string) string {
	for part := range strings.SplitSeq(h, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		ref := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(ref, "<") || !strings.HasSuffix(ref, ">") {
			continue
		}
		for _, p := range segs[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(k), "rel") {
				continue
			}
			for rel := range strings.FieldsSeq(strings.Trim(strings.TrimSpace(v), `"`)) {
				if strings.EqualFold(rel, "next") {
					return ref[1 : len(ref)-1]
				}
			}
		}
	}
	return ""
}
