package middleware

import (
	"net/http"
	"time"

	"commitcrawl/internal/platform/logger"
	pnet "commitcrawl/internal/platform/net"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// AccessLogOptions configures AccessLogZerolog
type AccessLogOptions struct {
	// Slow promotes requests taking at least Slow to warn; 0 disables it
	Slow time.Duration
	// Log replaces the context logger, mostly for tests
	Log *logger.Logger
}

// AccessLogZerolog puts the request id on the context for logger.C and logs
// one line per request. 5xx responses log at error level.
func AccessLogZerolog(opt AccessLogOptions) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := pnet.RequestID(r.Context())
			r = r.WithContext(logger.WithRequest(r.Context(), reqID))
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			log := logger.C(r.Context())
			if opt.Log != nil {
				l := opt.Log.With().Str("request_id", reqID).Logger()
				log = &l
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			evt := log.Info()
			switch {
			case status >= http.StatusInternalServerError:
				evt = log.Error()
			case opt.Slow > 0 && elapsed >= opt.Slow:
				evt = log.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", r.URL.RawQuery).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("request done")
		})
	}
}
