package middleware

import (
	"net/http"
	"runtime/debug"

	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"
	pnet "commitcrawl/internal/platform/net"
	phttp "commitcrawl/internal/platform/net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// errPanic is all a client learns about a recovered panic
var errPanic = perr.New(perr.ErrorCodeUnknown, "internal error")

// RecoverJSON turns a handler panic into a 500 envelope and logs the value
// and stack. http.ErrAbortHandler is re-raised so net/http can drop the
// connection as the handler asked.
func RecoverJSON(next http.Handler) http.Handler {
	fail := phttp.Handle(func(*http.Request) phttp.Response { return phttp.Error(errPanic) })
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			switch v {
			case nil:
				return
			case http.ErrAbortHandler:
				panic(v)
			}
			id := pnet.RequestID(r.Context())
			logger.C(r.Context()).Error().
				Str("request_id", id).
				Interface("panic", v).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if id != "" {
				w.Header().Set(chimw.RequestIDHeader, id)
			}
			fail(w, r)
		}()
		next.ServeHTTP(w, r)
	})
}
