package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yok-tottii/EzRecorder/internal/logger"
)

//go:embed frontend/*
var frontendFS embed.FS

// Server serves the recordings page and the API on localhost
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	mux        *http.ServeMux
	config     Config
	port       int
	log        *logger.Logger
	mu         sync.Mutex
	running    bool
}

// Config holds server configuration
type Config struct {
	Port            int           // Port to listen on (0 = random)
	ReadTimeout     time.Duration // HTTP read timeout
	WriteTimeout    time.Duration // HTTP write timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Port:            18766,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// New creates a new HTTP server; log may be nil
func New(config Config, log *logger.Logger) *Server {
	return &Server{
		mux:    http.NewServeMux(),
		config: config,
		port:   config.Port,
		log:    log,
	}
}

// GetMux returns the mux so API routes can be registered before Start
func (s *Server) GetMux() *http.ServeMux {
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	// Listen on localhost only
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	frontendSubFS, err := fs.Sub(frontendFS, "frontend")
	if err != nil {
		listener.Close()
		return fmt.Errorf("failed to create frontend sub-filesystem: %w", err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	// Static files go on a separate mux so "/" does not shadow API routes
	root := http.NewServeMux()
	root.Handle("/api/", s.mux)
	root.Handle("/ws", s.mux)
	root.Handle("/", http.FileServer(http.FS(frontendSubFS)))

	s.httpServer = &http.Server{
		Handler:      corsMiddleware(root),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func(srv *http.Server, ln net.Listener) {
		s.log.Info("HTTP server listening on http://%s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error: %v", err)
		}
	}(s.httpServer, listener)

	s.running = true
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Shutdown does not wait for hijacked WebSocket connections; the API closes those
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.running = false
	return nil
}

// Port returns the port the server is listening on
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the full URL to the server
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// isLocalOrigin reports whether origin is served from this machine
func isLocalOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "http://127.0.0.1"} {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// corsMiddleware adds CORS headers for localhost-only access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && isLocalOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RegisterAPIHandler registers a handler on the API mux; only valid before Start
func (s *Server) RegisterAPIHandler(path string, handler http.Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("cannot register handler after server started")
	}
	if !strings.HasPrefix(path, "/api/") && path != "/ws" {
		return fmt.Errorf("handler path must be under /api/ or be /ws: %s", path)
	}

	s.mux.Handle(path, handler)
	return nil
}
