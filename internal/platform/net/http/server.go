package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"time"

	"commitcrawl/internal/platform/config"
	perr "commitcrawl/internal/platform/errors"
	"commitcrawl/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

const (
	shutdownGrace     = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	// CSV downloads of a large dataset can take a while on a slow client
	writeTimeout = 5 * time.Minute
)

// Server serves the read API on a chi mux
type Server struct {
	mux *chi.Mux
	srv *stdhttp.Server
}

// NewServer listens on CORE_SERVE_ADDR (default :8080). Unknown paths and
// methods answer with an error envelope; opts may replace that on the mux.
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	m := chi.NewRouter()
	m.NotFound(Handle(func(r *stdhttp.Request) Response {
		return Error(perr.Newf(perr.ErrorCodeNotFound, "no route for %s", r.URL.Path))
	}))
	m.MethodNotAllowed(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		JSON(w, stdhttp.StatusMethodNotAllowed, Envelope{
			StatusCode: stdhttp.StatusMethodNotAllowed,
			Status:     stdhttp.StatusText(stdhttp.StatusMethodNotAllowed),
			Code:       perr.ErrorCodeInvalidArgument,
			Kind:       "method_not_allowed",
			Error:      r.Method + " is not served here",
			Field:      "method",
		})
	})
	for _, o := range opts {
		o(m)
	}
	return &Server{
		mux: m,
		srv: &stdhttp.Server{
			Addr:              cfg.Prefix("CORE_SERVE_").MayString("ADDR", ":8080"),
			Handler:           m,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
		},
	}
}

// Router is the mount point for modules
func (s *Server) Router() Router { return AdaptChi(s.mux) }

func (s *Server) Addr() string { return s.srv.Addr }

// Run serves until ctx ends, then drains in-flight requests for up to shutdownGrace
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("http listening")
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			err = nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("http shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	<-errc
	return nil
}
