// Package server composes the HTTP surface of the voting binaries and runs
// it until the context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Guizzs26/community_voting_system/internal/devserver"
	"github.com/Guizzs26/community_voting_system/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 5 * time.Second

// RouterOptions configures the shared middleware stack.
type RouterOptions struct {
	Logger         logrus.FieldLogger
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string

	DevMode      bool
	AllowedHosts []string
	// DevProxy receives every request no route matched.
	DevProxy http.Handler
}

// NewRouter builds a chi router with request IDs, logging, panic recovery,
// CORS and the dev host check, then lets each mount add its routes.
func NewRouter(opts RouterOptions, mounts ...func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		logging.RequestLogger(opts.Logger),
		middleware.Recoverer,
	)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}).Handler)
	}
	r.Use(devserver.AllowedHosts(opts.DevMode, devserver.NewHostPolicy(opts.AllowedHosts), opts.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		logging.WriteJSON(w, opts.Logger, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, mount := range mounts {
		mount(r)
	}

	if opts.DevMode && opts.DevProxy != nil {
		r.NotFound(opts.DevProxy.ServeHTTP)
	}
	return r
}

type Server struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
	logger          logrus.FieldLogger
}

func New(addr string, handler http.Handler, shutdownTimeout time.Duration, logger logrus.FieldLogger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &Server{addr: addr, handler: handler, shutdownTimeout: shutdownTimeout, logger: logger}
}

// Serve listens on the configured address and blocks until ctx is
// cancelled or the server fails.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.WithField("addr", ln.Addr().String()).Info("HTTP server listening")

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
