package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webext-labs/webext/internal/hooks"
	"github.com/webext-labs/webext/internal/registry"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds how long Serve waits for in-flight requests.
const DefaultShutdownTimeout = 10 * time.Second

// Server is the admin HTTP server over one registry.
type Server struct {
	reg             *registry.Registry
	logger          *zap.Logger
	router          chi.Router
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New builds the admin server and its routes.
func New(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		reg:             reg,
		logger:          zap.NewNop(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestHooks)

	r.Route("/api/extensions", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/install", s.handleInstall)
		r.Post("/enable", s.handleEnable)
		r.Post("/disable", s.handleDisable)
		r.Post("/uninstall", s.handleUninstall)
		r.Post("/settings", s.handleSettings)
		r.Post("/discover", s.handleDiscover)
		r.Post("/initialize", s.handleInitialize)
		r.Get("/mounts/{mount}", s.handleMount)
		r.Get("/tools", s.handleTools)
		r.Post("/tools/{ref}", s.handleInvokeTool)
		r.Get("/{name}", s.handleGet)
	})
	r.HandleFunc("/api/ext/{name}", s.handleExtensionRoute)
	r.HandleFunc("/api/ext/{name}/*", s.handleExtensionRoute)
	r.Get("/static/ext/{name}/*", s.handleStatic)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// requestHooks fires api_before_request and api_after_request around every
// request and logs it.
func (s *Server) requestHooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.reg.Hooks().Dispatch(r.Context(), hooks.APIBeforeRequest, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.reg.Hooks().Dispatch(r.Context(), hooks.APIAfterRequest, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		})
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Serve fires system_init and api_init, listens on addr until ctx is
// cancelled, then shuts down gracefully and fires system_shutdown.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	s.reg.Hooks().Dispatch(ctx, hooks.SystemInit, nil)
	s.reg.Hooks().Dispatch(ctx, hooks.APIInit, map[string]any{"addr": ln.Addr().String()})
	s.logger.Info("admin server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		serveErr = srv.Shutdown(shutdownCtx)
		cancel()
		<-errCh
	}

	s.reg.Hooks().Dispatch(context.Background(), hooks.SystemShutdown, nil)
	s.logger.Info("admin server stopped")
	if errors.Is(serveErr, http.ErrServerClosed) {
		return nil
	}
	return serveErr
}
