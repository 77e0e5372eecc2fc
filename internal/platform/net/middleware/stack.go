// Package middleware is the chain in front of the read API: chi's stock
// middleware and go-chi/cors, plus zerolog access logging and panic
// recovery that answer in the API envelope
package middleware

import (
	"compress/flate"
	"net/http"
	"time"

	pstrings "commitcrawl/internal/platform/strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	chicors "github.com/go-chi/cors"
)

// Middleware is the plain net/http decorator shape
type Middleware = func(http.Handler) http.Handler

// Options tunes Stack
type Options struct {
	// Origins may call the API cross origin; empty disables CORS
	Origins []string
	// Slow promotes access log lines at or above this duration to warn
	Slow time.Duration
	// Timeout cancels the request context
	Timeout time.Duration
}

const (
	defaultSlow    = 500 * time.Millisecond
	defaultTimeout = 30 * time.Second
)

// Stack is the read API chain, outermost first. The request id comes first
// so every later layer can report it; recovery sits inside the access log
// so a recovered panic is still logged as a 500.
func Stack(o Options) []Middleware {
	if o.Slow <= 0 {
		o.Slow = defaultSlow
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	gz := chimw.NewCompressor(flate.BestSpeed, "application/json", "text/csv")
	return []Middleware{
		chimw.RequestID,
		chimw.RealIP,
		AccessLogZerolog(AccessLogOptions{Slow: o.Slow}),
		RecoverJSON,
		chimw.NoCache,
		CORS(CORSOptions{AllowedOrigins: o.Origins}),
		gz.Handler,
		chimw.StripSlashes,
		chimw.Timeout(o.Timeout),
	}
}

// CORSOptions is the part of go-chi/cors the API configures
type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         int
}

// CORS defaults to read only methods and exposes the request id
func CORS(o CORSOptions) Middleware {
	return chicors.Handler(chicors.Options{
		AllowedOrigins: o.AllowedOrigins,
		AllowedMethods: pstrings.OrSlice(o.AllowedMethods, []string{http.MethodGet, http.MethodHead, http.MethodOptions}),
		AllowedHeaders: pstrings.OrSlice(o.AllowedHeaders, []string{"Accept", "Content-Type", chimw.RequestIDHeader}),
		ExposedHeaders: pstrings.OrSlice(o.ExposedHeaders, []string{chimw.RequestIDHeader}),
		MaxAge:         o.MaxAge,
	})
}
