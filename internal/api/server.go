// Package api exposes the minimal administrative HTTP surface:
// start/stop/restart/hard-reset, switch trading mode, reload strategies,
// export the recent activity log, and the backtest job endpoints. Layering
// follows gin.New + Recovery + a logging middleware + CORS.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/cryptofunk/internal/domain"
	"github.com/ajitpratap0/cryptofunk/internal/scanner"
)

var startTime = time.Now()

// ScannerControl is the narrow contract the admin surface needs on
// internal/scanner.Scanner.
type ScannerControl interface {
	Start(ctx context.Context) (bool, error)
	Stop()
	Restart(ctx context.Context) (bool, error)
	HardReset(ctx context.Context) (bool, error)
	SwitchMode(ctx context.Context, mode domain.TradingMode) (bool, error)
	ReloadStrategies(ctx context.Context) error
	Stats() scanner.Stats
	IsLeader() bool
}

// ActivityExporter is the narrow contract the admin surface needs on
// internal/activitylog.Log.
type ActivityExporter interface {
	ExportJSONLines() ([]byte, error)
}

// Config bundles everything NewServer needs to wire the admin surface,
// optional API-key auth, and the backtest job endpoints.
type Config struct {
	Host string
	Port int

	Scanner  ScannerControl
	Activity ActivityExporter

	// DB, if non-nil, backs both the backtest job manager and (when
	// AuthEnabled) the API-key store.
	DB          *pgxpool.Pool
	AuthEnabled bool

	// Hub, if non-nil, is used as the admin WebSocket broadcast hub
	// instead of constructing a fresh one, letting the caller register it
	// as a notify.Sink before the server is built. If nil, NewServer
	// constructs and runs its own.
	Hub *Hub

	Log zerolog.Logger
}

// Server is the admin/backtest REST surface.
type Server struct {
	router *gin.Engine
	addr   string
	server *http.Server
	log    zerolog.Logger

	// Hub, if set, broadcasts activity entries to connected admin
	// WebSocket clients at GET /admin/activity-stream. Register it with
	// the scanner's notify.Notifier as a notify.Sink to feed it.
	Hub *Hub
}

// NewServer wires the gin router: recovery, request logging, CORS, the
// admin control routes, and (if cfg.DB is set) the backtest job routes.
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(cfg.Log)
		go hub.Run()
	}

	s := &Server{
		router: router,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		log:    cfg.Log.With().Str("component", "admin_api").Logger(),
		Hub:    hub,
	}

	var authMW gin.HandlerFunc
	if cfg.AuthEnabled && cfg.DB != nil {
		keyStore := NewAPIKeyStore(cfg.DB, true)
		authConfig := DefaultAuthConfig()
		authConfig.Enabled = true
		authMW = AuthMiddleware(keyStore, authConfig)
	}

	admin := &AdminHandler{scanner: cfg.Scanner, activity: cfg.Activity}
	registerAdminRoutes(router, admin, authMW, hub)

	if cfg.DB != nil {
		backtestHandler := NewBacktestHandler(cfg.DB)
		v1 := router.Group("/api/v1")
		backtestHandler.RegisterRoutes(v1)
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "cryptofunk-scanner", "status": "running", "time": time.Now().UTC()})
	})
	router.GET("/health", admin.handleHealth)

	return s
}

// Start runs the HTTP server until Stop shuts it down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", s.addr).Msg("starting admin API server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: listen and serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("stopping admin API server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// LoggerMiddleware logs each request's method, path, status and latency.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		event := log.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.Msg("admin api request")
	}
}
