package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"audit-trail/pkg/audit"
	"audit-trail/pkg/config"
	"audit-trail/pkg/db"
	"audit-trail/pkg/feed"
	"audit-trail/pkg/handlers"
	"audit-trail/pkg/logging"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// Server represents the application server
type Server struct {
	router   *mux.Router
	handlers *handlers.Handlers
	service  *audit.Service
	hub      *feed.Hub
	store    db.IVersionStore
	config   *config.Config
	logger   *slog.Logger
}

// NewServer opens the configured store and wires the server around it
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewServerWithStore(cfg, store, logger), nil
}

// NewServerWithStore wires a server around an already opened store
func NewServerWithStore(cfg *config.Config, store db.IVersionStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	hub := feed.NewHub(store.FindAll, logger.With("component", "feed"))
	service := audit.NewService(store,
		audit.WithPublisher(hub),
		audit.WithLogger(logger.With("component", "audit")),
	)

	h := handlers.NewHandlers(service, hub, logger.With("component", "http"))

	r := mux.NewRouter()

	// Live feed for display clients
	r.HandleFunc("/ws/versions", h.HandleFeed)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/save-version", h.SaveVersion).Methods(http.MethodPost)
	api.HandleFunc("/versions", h.ListVersions).Methods(http.MethodGet)
	api.HandleFunc("/versions/{id}", h.DeleteVersion).Methods(http.MethodDelete)
	api.HandleFunc("/diff", h.Diff).Methods(http.MethodPost)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)

	return &Server{
		router:   r,
		handlers: h,
		service:  service,
		hub:      hub,
		store:    store,
		config:   cfg,
		logger:   logger,
	}
}

// Handler returns the full middleware chain around the router
func (s *Server) Handler() http.Handler {
	// CORS sits outside the router so preflight (OPTIONS) requests are
	// answered before mux does method-based matching (which would
	// otherwise return 405).
	return corsMiddleware(logging.Middleware(s.logger)(s.router))
}

// Service exposes the version service used by the server
func (s *Server) Service() *audit.Service {
	return s.service
}

// Hub exposes the live feed hub
func (s *Server) Hub() *feed.Hub {
	return s.hub
}

// Run serves HTTP on addr (the configured address when empty) until ctx
// is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = s.config.GetServerAddr()
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting audit trail server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down audit trail server")
	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

// corsMiddleware handles CORS headers and responds to preflight requests
// at the outer layer so they don't get rejected by method-restricted routes.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			// Reflect the origin for stricter CORS (avoids some browser issues with credentials)
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		// If the browser asked for specific headers, echo them back; otherwise allow common headers
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Headers")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close closes the store
func (s *Server) Close() error {
	return s.store.Close()
}
