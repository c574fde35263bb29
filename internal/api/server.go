// Package api exposes the scan engines over HTTP. One process serves
// JSON scan endpoints, a health check, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/logging"
	"github.com/averlane/osprey/internal/metrics"
	"github.com/averlane/osprey/internal/portscan"
	"github.com/averlane/osprey/internal/revdns"
	"github.com/averlane/osprey/internal/store"
	"github.com/averlane/osprey/internal/subenum"
)

const (
	serverShutdownTimeout = 30 * time.Second
	maxRequestBody        = 1 << 20
)

// PortScanner runs TCP connect scans.
type PortScanner interface {
	Scan(ctx context.Context, host string, opts portscan.Options) (*portscan.Result, error)
}

// ReverseRunner runs reverse DNS sweeps.
type ReverseRunner interface {
	Run(ctx context.Context, rawTarget string, opts revdns.Options) (*revdns.Result, error)
}

// SubEnumerator runs subdomain enumeration.
type SubEnumerator interface {
	Enumerate(ctx context.Context, domain string, opts subenum.Options) (*subenum.Result, error)
}

// Engines bundles the scan implementations behind the API.
type Engines struct {
	PortScan PortScanner
	Reverse  ReverseRunner
	Subenum  SubEnumerator
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cfg        config.APIConfig
	engines    Engines
	history    *store.Store
	log        *logging.Logger
	startTime  time.Time
}

// New builds a server. history may be nil, in which case runs are not
// persisted.
func New(cfg config.APIConfig, engines Engines, history *store.Store) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		cfg:       cfg,
		engines:   engines,
		history:   history,
		log:       logging.Default().WithComponent("api"),
		startTime: time.Now(),
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.ListenAddr, strconv.Itoa(cfg.Port)),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting API server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("API server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("API server stopped")
	return nil
}

// Router returns the configured router, used by tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.httpServer.Addr
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/portscan", s.portscanHandler).Methods("POST")
	api.HandleFunc("/reverse-dns", s.reverseDNSHandler).Methods("POST")
	api.HandleFunc("/subdomains", s.subdomainsHandler).Methods("POST")
	api.HandleFunc("/history", s.historyHandler).Methods("GET")

	s.router.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	s.router.Handle("/metrics", metrics.Global().Handler()).Methods("GET")
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.observeMiddleware)

	if s.cfg.CORSEnabled {
		s.router.Use(handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
			handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		))
	}
}

// errorStatus maps error codes onto HTTP statuses. Pre-flight problems
// are client errors; upstream unavailability is a gateway problem.
func errorStatus(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeParse, errors.CodeValidation:
		return http.StatusBadRequest
	case errors.CodeGuardrailExceeded:
		return http.StatusUnprocessableEntity
	case errors.CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	s.log.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err)

	s.writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Code:      string(errors.GetCode(err)),
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewParseError("request body", err.Error())
	}
	return nil
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}
