// ABOUTME: HTTP API for the page store, used by the browser extension.
// ABOUTME: Routes health, store, similar, stats, webpages, and clear with graceful shutdown.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/2389-research/pagemem/internal/index"
	"github.com/2389-research/pagemem/internal/logging"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 20
)

// Server serves the page store over HTTP.
type Server struct {
	store  *index.Store
	logger *slog.Logger
	router *mux.Router
	now    func() time.Time
}

// ServerOption configures optional Server settings.
type ServerOption func(*Server)

// WithClock sets the time source used by the health endpoint.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Server and registers its routes.
func New(store *index.Store, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		store:  store,
		logger: logger,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestID, s.accessLog, cors)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/store", s.handleStore).Methods(http.MethodPost)
	api.HandleFunc("/similar", s.handleSimilar).Methods(http.MethodPost)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/webpages", s.handleWebpages).Methods(http.MethodGet)
	api.HandleFunc("/clear", s.handleClear).Methods(http.MethodPost)

	// Preflight requests for any API path.
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// mux only runs Use middleware on matched routes.
	s.router.NotFoundHandler = s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	}))
	s.router.MethodNotAllowedHandler = s.withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}))
}

// withMiddleware applies the same chain as router.Use.
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return s.requestID(s.accessLog(cors(h)))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown error", "error", err)
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
