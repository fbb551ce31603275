package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"territory-router/internal/handlers"
	"territory-router/internal/optimizer"
	"territory-router/internal/roadnet"
	"territory-router/internal/routing"
	"territory-router/internal/sqlite"
)

// Config holds server configuration
type Config struct {
	Addr          string // e.g., "127.0.0.1:8080" or "127.0.0.1:0" for random port
	DBPath        string
	OverpassURL   string
	CVRPSolverURL string
}

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	db         *sqlite.Store
	listener   net.Listener
	addr       string
}

// New creates and initializes a new server (does not start it)
func New(cfg Config) (*Server, error) {
	log.Printf("Initializing data store...")
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize data store: %w", err)
	}

	roads := roadnet.NewOverpassIndex(cfg.OverpassURL)
	svc := optimizer.New(db, roads, routing.NewSweepStrategy(), routing.NewCVRPStrategy(cfg.CVRPSolverURL))

	handler := &handlers.Handler{
		DB:        db,
		Optimizer: svc,
	}

	mux := setupRoutes(handler)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      loggingMiddleware(corsMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		handler:    handler,
		db:         db,
		addr:       cfg.Addr,
	}, nil
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	log.Printf("Starting server on %s", actualAddr)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Server error: %v", err)
		}
	}()

	return actualAddr, nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	return s.db.Close()
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", handler.HandleHealthCheck)
	mux.HandleFunc("POST /api/v1/campaigns", handler.HandleCreateCampaign)
	mux.HandleFunc("PUT /api/v1/campaigns/{id}/addresses", handler.HandleImportAddresses)
	mux.HandleFunc("POST /api/v1/campaigns/{id}/boundary/snap", handler.HandleSnapBoundary)
	mux.HandleFunc("POST /api/v1/campaigns/{id}/routes/optimize", handler.HandleOptimizeRoute)
	mux.HandleFunc("GET /api/v1/campaigns/{id}/routes", handler.HandleGetRoute)

	return mux
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[HTTP] %s %s completed in %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// corsMiddleware allows cross-origin requests from the dashboard frontend
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
