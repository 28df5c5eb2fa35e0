// Package server provides the HTTP server and routing for Ballast.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ballastd/ballast/internal/config"
	"github.com/ballastd/ballast/internal/di"
	accountshandlers "github.com/ballastd/ballast/internal/modules/accounts/handlers"
	allocationhandlers "github.com/ballastd/ballast/internal/modules/allocation/handlers"
	historyhandlers "github.com/ballastd/ballast/internal/modules/history/handlers"
	ledgerhandlers "github.com/ballastd/ballast/internal/modules/ledger/handlers"
	portfoliohandlers "github.com/ballastd/ballast/internal/modules/portfolio/handlers"
	rebalancehandlers "github.com/ballastd/ballast/internal/modules/rebalance/handlers"
	settingshandlers "github.com/ballastd/ballast/internal/modules/settings/handlers"
	universehandlers "github.com/ballastd/ballast/internal/modules/universe/handlers"
	washsalehandlers "github.com/ballastd/ballast/internal/modules/washsale/handlers"
)

// statusMonitorInterval is how often the status monitor publishes a
// SYSTEM_STATUS_CHANGED event for connected dashboards.
const statusMonitorInterval = 60 * time.Second

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Port      int
	DevMode   bool
	Container *di.Container
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
	statusMonitor  *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	systemHandlers := NewSystemHandlers(
		cfg.Log,
		cfg.Config.DataDir,
		cfg.Container.ManagedDatabases(),
		cfg.Container.HistoryConn,
		cfg.Container.SecurityRepo,
		cfg.Container.GroupRepo,
	)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		container:      cfg.Container,
		systemHandlers: systemHandlers,
	}

	s.statusMonitor = NewStatusMonitor(cfg.Container.EventManager, systemHandlers, cfg.Log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS. The frontend is served separately (dev server or static host),
	// so localhost is always allowed and one extra origin can be configured.
	origins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	if s.cfg.FrontendURL != "" {
		origins = append(origins, s.cfg.FrontendURL)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health and version endpoints (outside /api for load balancers)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/version", s.handleVersion)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Unified events stream (SSE)
		eventsStreamHandler := NewEventsStreamHandler(s.container.EventBus, s.log)
		r.Get("/events/stream", eventsStreamHandler.ServeHTTP)

		// System monitoring
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)
		})

		// Module routes, each handler draws its service from the container
		universeHandler := universehandlers.NewHandler(s.container.UniverseService, s.log)
		universeHandler.RegisterRoutes(r)

		allocationHandler := allocationhandlers.NewHandler(s.container.AllocationService, s.log)
		allocationHandler.RegisterRoutes(r)

		accountsHandler := accountshandlers.NewHandler(s.container.AccountsService, s.log)
		accountsHandler.RegisterRoutes(r)

		portfolioHandler := portfoliohandlers.NewHandler(s.container.PortfolioService, s.log)
		portfolioHandler.RegisterRoutes(r)

		ledgerHandler := ledgerhandlers.NewHandler(s.container.LedgerService, s.log)
		ledgerHandler.RegisterRoutes(r)

		washsaleHandler := washsalehandlers.NewHandler(s.container.WashsaleService, s.log)
		washsaleHandler.RegisterRoutes(r)

		settingsHandler := settingshandlers.NewHandler(s.container.SettingsService, s.container.EventManager, s.log)
		settingsHandler.RegisterRoutes(r)

		rebalanceHandler := rebalancehandlers.NewHandler(s.container.RebalanceService, s.log)
		rebalanceHandler.RegisterRoutes(r)

		historyHandler := historyhandlers.NewHandler(s.container.HistoryService, s.log)
		historyHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server and background monitors
func (s *Server) Start() error {
	if s.statusMonitor != nil {
		s.statusMonitor.Start(statusMonitorInterval)
		s.log.Info().Msg("Status monitor started")
	}

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	if s.statusMonitor != nil {
		s.statusMonitor.Stop()
	}
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
