// Package server exposes the store, dashboard and attachments over an
// authenticated JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/tally/internal/attachments"
	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/logging"
	"github.com/sadopc/tally/internal/store"
)

const shutdownTimeout = 5 * time.Second

// ServerOptions configures a Server. Store and Blobs are required.
type ServerOptions struct {
	Store          *store.Store
	Blobs          *attachments.Blobs
	Engine         *dashboard.Engine
	Logger         logrus.FieldLogger
	MaxUploadBytes int64
	Location       *time.Location
	Clock          func() time.Time
}

// Server handles API requests.
type Server struct {
	store     *store.Store
	blobs     *attachments.Blobs
	engine    *dashboard.Engine
	log       logrus.FieldLogger
	maxUpload int64
	loc       *time.Location
	clock     func() time.Time
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Blobs == nil {
		return nil, fmt.Errorf("attachment storage is required")
	}
	s := &Server{
		store:     opts.Store,
		blobs:     opts.Blobs,
		engine:    opts.Engine,
		log:       opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		loc:       opts.Location,
		clock:     opts.Clock,
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = attachments.DefaultMaxBytes
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.engine == nil {
		s.engine = dashboard.New(opts.Store,
			dashboard.WithClock(s.clock),
			dashboard.WithLocation(s.loc),
			dashboard.WithLogger(s.log),
		)
	}
	return s, nil
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.Handle("POST /api/timer/start", s.authed(s.handleStartTimer))
	mux.Handle("POST /api/timer/stop", s.authed(s.handleStopTimer))
	mux.Handle("GET /api/timer/active", s.authed(s.handleActiveTimer))

	mux.Handle("GET /api/time-entries", s.authed(s.handleListEntries))
	mux.Handle("PATCH /api/time-entries/{id}", s.authed(s.handleEditEntry))
	mux.Handle("DELETE /api/time-entries/{id}", s.authed(s.handleDeleteEntry))

	mux.Handle("GET /api/dashboard", s.authed(s.handleDashboard))
	mux.Handle("GET /api/dashboard/export", s.authed(s.handleExport))

	mux.Handle("GET /api/projects", s.authed(s.handleListProjects))
	mux.Handle("POST /api/projects", s.authed(s.handleCreateProject))
	mux.Handle("GET /api/projects/{id}", s.authed(s.handleGetProject))
	mux.Handle("PATCH /api/projects/{id}", s.authed(s.handleUpdateProject))
	mux.Handle("DELETE /api/projects/{id}", s.authed(s.handleDeleteProject))
	mux.Handle("GET /api/projects/{id}/tasks", s.authed(s.handleListTasks))

	mux.Handle("POST /api/tasks", s.authed(s.handleCreateTask))
	mux.Handle("PATCH /api/tasks/{id}", s.authed(s.handleUpdateTask))
	mux.Handle("DELETE /api/tasks/{id}", s.authed(s.handleDeleteTask))

	mux.Handle("GET /api/attachments", s.authed(s.handleListAttachments))
	mux.Handle("POST /api/attachments/upload", s.authed(s.handleUploadAttachment))
	mux.Handle("GET /api/attachments/{id}", s.authed(s.handleDownloadAttachment))
	mux.Handle("DELETE /api/attachments/{id}", s.authed(s.handleDeleteAttachment))

	mux.Handle("GET /api/settings", s.authed(s.handleGetSettings))
	mux.Handle("PATCH /api/settings", s.authed(s.handleUpdateSettings))

	return s.recoverHandler(s.logRequests(mux))
}

// Serve runs the server on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listenErrs := make(chan error, 1)
	go func() {
		listenErrs <- server.Serve(ln)
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("server listening")

	select {
	case err := <-listenErrs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		shutdownErr := server.Shutdown(shutdownCtx)
		cancel()
		listenErr := <-listenErrs
		if errors.Is(listenErr, http.ErrServerClosed) {
			listenErr = nil
		}
		return errors.Join(shutdownErr, listenErr)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
