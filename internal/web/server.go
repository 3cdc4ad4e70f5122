package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/perbu/presensi/internal/coordinator"
	"github.com/perbu/presensi/internal/service"
	"github.com/perbu/presensi/internal/verify"
)

// Coordinator is the part of the task coordinator the server submits to
type Coordinator interface {
	SubmitExclusive(ownerID string, sink coordinator.ReplySink[*verify.Report]) error
	SubmitQueued(requestID, payload string, sink coordinator.ReplySink[string]) (int, error)
	Stats() coordinator.Stats
}

// Options configures a Server
type Options struct {
	Host       string
	Port       int
	AuthHeader string
	APIToken   string
	Logger     *slog.Logger
}

// Server is the HTTP server for the API and the history UI
type Server struct {
	coord     Coordinator
	history   *service.HistoryService
	templates *Templates
	mux       *http.ServeMux
	handler   http.Handler
	host      string
	port      int
	logger    *slog.Logger
}

// NewServer creates a new web server
func NewServer(coord Coordinator, history *service.HistoryService, opts Options) (*Server, error) {
	templates, err := ParseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		coord:     coord,
		history:   history,
		templates: templates,
		mux:       http.NewServeMux(),
		host:      opts.Host,
		port:      opts.Port,
		logger:    opts.Logger,
	}

	s.registerRoutes()
	auth := NewAuthMiddleware(opts.AuthHeader, opts.APIToken, opts.Logger)
	s.handler = auth.Middleware(s.mux)

	return s, nil
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /tasks/{id}", s.handleTaskView)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/check", RequireAuth(s.handleCheck))
	s.mux.HandleFunc("POST /api/ask", RequireAuth(s.handleAsk))
}

// Handler returns the root handler including middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprint(s.port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web server", "addr", s.Address())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("http://%s:%d", s.host, s.port)
}
