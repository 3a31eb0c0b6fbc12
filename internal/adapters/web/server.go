// Package web serves the parcel HTTP API: proxy routes onto the parcel
// provider, the buildable-area workflow and a health endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corey/mapbuilder/internal/domain/buildable"
	"github.com/corey/mapbuilder/internal/logging"
	"github.com/corey/mapbuilder/internal/ports"
	"github.com/rs/cors"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Backend is what the API needs from the application.
type Backend interface {
	// Provider answers the proxy routes.
	Provider() ports.ParcelProvider
	// ProviderName identifies the provider in /api/health.
	ProviderName() string
	// AssessParcel runs the empty-parcel workflow.
	AssessParcel(ctx context.Context, parcel ports.Parcel) (*buildable.Assessment, error)
	// Estimate runs the calculator on caller-supplied inputs.
	Estimate(in *buildable.ParcelInput) (*buildable.Report, error)
}

// Options configures a Server.
type Options struct {
	AllowedOrigin string // CORS origin, "*" when empty
	PortFile      string // bound port is written here when set
	Logger        logging.Logger
}

// Server serves the JSON API over HTTP.
type Server struct {
	backend  Backend
	log      logging.Logger
	origin   string
	listener net.Listener
	httpSrv  *http.Server
	port     int
	started  time.Time
	stopOnce sync.Once

	portFilePath string

	requests atomic.Int64
	failures atomic.Int64
}

// NewServer creates an API server over backend. It does not listen yet.
func NewServer(backend Backend, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &Server{
		backend:      backend,
		log:          opts.Logger,
		origin:       opts.AllowedOrigin,
		started:      time.Now(),
		portFilePath: opts.PortFile,
	}
}

// Handler returns the routed API with its middleware stack.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/parcels/geometry", s.handleParcelsByGeometry)
	mux.HandleFunc("GET /api/parcels/address", s.handleParcelsByAddress)
	mux.HandleFunc("GET /api/structures/parcel/{id}", s.handleStructures)
	mux.HandleFunc("GET /api/zoning/parcel/{id}", s.handleZoning)
	mux.HandleFunc("GET /api/buildable/parcel/{id}", s.handleAssess)
	mux.HandleFunc("POST /api/buildable", s.handleEstimate)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{s.origin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	})
	return s.requestID(s.accessLog(c.Handler(mux)))
}

// Start listens on host:port (port 0 picks a free one) and serves in the
// background.
func (s *Server) Start(host string, port int) error {
	addr := net.JoinHostPort(host, fmt.Sprint(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.started = time.Now()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.portFilePath != "" {
		if err := os.WriteFile(s.portFilePath, []byte(fmt.Sprintf("%d", s.port)), 0644); err != nil {
			s.log.Warn("port file not written", "path", s.portFilePath, "error", err)
		}
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.httpSrv.Shutdown(ctx); err != nil {
				s.log.Warn("http shutdown", "error", err)
			}
		}
		if s.portFilePath != "" {
			os.Remove(s.portFilePath)
		}
	})
}

// Port returns the bound port number.
func (s *Server) Port() int {
	return s.port
}

// URL returns the API base URL.
func (s *Server) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}
