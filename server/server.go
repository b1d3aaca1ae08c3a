// Package server hosts viewers for browsers. The browser shim served at /
// opens a WebSocket per mount; the server runs a viewer for it and streams
// rendered pages back as PNG surfaces. Documents are opened by ticket, never
// by a URL the browser chose.
package server

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wudi/pdfviewer/observability"
	"github.com/wudi/pdfviewer/ticket"
	"github.com/wudi/pdfviewer/viewer"
)

//go:embed shim.html
var shimHTML []byte

// Config holds server configuration.
type Config struct {
	Addr string
	// AllowedOrigins restricts CORS and WebSocket origins. Empty allows
	// same-origin requests only.
	AllowedOrigins []string
	// MaxSessions caps concurrent viewers; 0 means unlimited.
	MaxSessions int

	Loader  viewer.Loader
	Tickets *ticket.Signer
	// Viewer is the template for every session's viewer.
	Viewer viewer.Config
	Logger observability.Logger
}

type Server struct {
	cfg        Config
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server

	base context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
}

func New(cfg Config) (*Server, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("server: loader is required")
	}
	if cfg.Tickets == nil {
		return nil, fmt.Errorf("server: ticket signer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	s := &Server{cfg: cfg, sessions: make(map[string]*session)}
	s.base, s.stop = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/", s.serveShim)
	r.Get("/ws", s.handleWebSocket)
	return r
}

// checkOrigin accepts same-origin upgrades and the configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) serveShim(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(shimHTML)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	if !s.reserve(id) {
		http.Error(w, "too many viewers", http.StatusServiceUnavailable)
		return
	}
	defer s.release(id)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("server: websocket upgrade", observability.Error("error", err))
		return
	}
	defer conn.Close()

	sess, err := s.newSession(s.base, id, conn)
	if err != nil {
		s.cfg.Logger.Error("server: new session", observability.Error("error", err))
		return
	}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.cfg.Logger.Info("server: session started",
		observability.String("session", id),
		observability.String("remote", r.RemoteAddr))
	sess.run()
	s.cfg.Logger.Info("server: session ended", observability.String("session", id))
}

// reserve claims a session slot for id.
func (s *Server) reserve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		return false
	}
	s.sessions[id] = nil
	s.wg.Add(1)
	return true
}

func (s *Server) release(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	s.wg.Done()
}

// Sessions returns the number of connected viewers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.cfg.Logger.Info("server: listening", observability.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and ends every session.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.stop()
	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess != nil {
			sess.conn.Close()
		}
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
