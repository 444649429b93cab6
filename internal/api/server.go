package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MirseoDB/mirseodb/internal/auth"
	"github.com/MirseoDB/mirseodb/internal/engine"
	"github.com/MirseoDB/mirseodb/internal/logging"
	"github.com/MirseoDB/mirseodb/internal/ratelimit"
	"github.com/MirseoDB/mirseodb/internal/sqlparse"
	"github.com/MirseoDB/mirseodb/internal/totp"
	"github.com/MirseoDB/mirseodb/pkg/config"
)

// Server is the HTTP collaborator in front of one engine instance. It
// spawns no engine work of its own: every statement goes through
// engine.Execute, which serialises access behind the engine lock.
type Server struct {
	router     *gin.Engine
	engine     *engine.Engine
	config     *config.Config
	analyzer   *sqlparse.Analyzer
	authConfig *auth.Config
	totpStore  *totp.Store
	routeCfg   *config.RouteConfig
	settings   *config.InstanceSettings
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer creates the REST API server for eng, loading the
// per-database auth, 2FA, routing and instance-settings files from the
// configured data directory.
func NewServer(eng *engine.Engine, cfg *config.Config) (*Server, error) {
	log := logging.GetLogger("api")
	log.Info("initializing REST API server")

	dataDir := cfg.Data.Dir
	if err := auth.EnsureExists(dataDir); err != nil {
		return nil, err
	}
	authConfig, err := auth.Load(dataDir)
	if err != nil {
		return nil, err
	}
	totpStore, err := totp.Load(dataDir)
	if err != nil {
		return nil, err
	}
	routeCfg, err := config.LoadRouteConfig(dataDir)
	if err != nil {
		return nil, err
	}
	settings, err := config.LoadInstanceSettings(dataDir)
	if err != nil {
		return nil, err
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders: []string{"Content-Length", "Retry-After"},
			MaxAge:        12 * time.Hour,
		}
		if len(cfg.RestAPI.AllowOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.RestAPI.AllowOrigins
		} else {
			corsConfig.AllowAllOrigins = true
		}
		router.Use(cors.New(corsConfig))
	}

	if cfg.RestAPI.APIToken != "" {
		log.Info("bearer token authentication enabled")
		router.Use(BearerTokenMiddleware(cfg.RestAPI.APIToken))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		rlCfg := &ratelimit.Config{
			Enabled: true,
			Global: ratelimit.LimitConfig{
				RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
				BurstSize:         cfg.RateLimit.BurstSize,
			},
			Query: ratelimit.LimitConfig{
				RequestsPerSecond: cfg.RateLimit.Query.RequestsPerSecond,
				BurstSize:         cfg.RateLimit.Query.BurstSize,
			},
		}
		router.Use(RateLimitMiddleware(ratelimit.NewLimiter(rlCfg)))
	}

	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	server := &Server{
		router:     router,
		engine:     eng,
		config:     cfg,
		analyzer:   sqlparse.NewAnalyzer(),
		authConfig: authConfig,
		totpStore:  totpStore,
		routeCfg:   routeCfg,
		settings:   settings,
		log:        log,
	}

	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.POST("/query", s.queryPOST)
	s.router.GET("/query", s.queryGET)

	s.router.GET("/health", s.healthHandler)
	s.router.GET("/time", s.timeHandler)

	s.router.POST("/setup/init", s.setupInit)
	s.router.POST("/setup/complete", s.setupComplete)
	s.router.GET("/setup/status", s.setupStatus)

	s.router.POST("/2fa/setup", s.twoFactorSetup)
	s.router.GET("/2fa/qr", s.twoFactorQR)
	s.router.POST("/2fa/verify", s.twoFactorVerify)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
		s.log.Debug("found available port", "port", port)
	}

	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("starting REST API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext starts the HTTP server with graceful shutdown support.
// It blocks until the context is cancelled or the server encounters an
// error.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
	}

	addr := fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting REST API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping REST API server")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
			return err
		}
		s.log.Info("REST API server stopped")
	}
	return nil
}

// Router returns the underlying Gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// findAvailablePort finds an available port starting from the given port
func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}
