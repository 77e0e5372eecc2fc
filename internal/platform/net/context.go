// Package net reads the request id that the envelope, the access log and
// panic recovery all report
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// WithRequestID seeds id under chi's request id key, as the RequestID
// middleware would; an empty id leaves ctx untouched
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}

// RequestID is the id chi assigned to the request, "" outside one
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }
