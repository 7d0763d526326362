package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/curatorapp/curator/internal/config"
	"github.com/curatorapp/curator/internal/events"
	"github.com/curatorapp/curator/internal/logger"
	"github.com/curatorapp/curator/internal/metadata"
	"github.com/curatorapp/curator/internal/middleware"
	"github.com/curatorapp/curator/internal/modules/eventsmodule"
	"github.com/curatorapp/curator/internal/modules/scannermodule"
	"github.com/curatorapp/curator/internal/modules/settingsmodule"
)

// Server owns the HTTP surface and the background modules behind it.
type Server struct {
	cfg    *config.Config
	router *gin.Engine
	http   *http.Server

	eventBus events.EventBus
	settings *settingsmodule.Module
	scanner  *scannermodule.Module
	events   *eventsmodule.Module
}

// New wires the modules together and builds the router. Modules are
// constructed explicitly so dependencies stay visible at the call site.
func New(cfg *config.Config, db *gorm.DB) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(middleware.RequestLogger(), middleware.ErrorLogger())
	if cfg.Server.EnableCORS {
		router.Use(corsMiddleware())
	}

	bus := events.NewEventBus(events.DefaultBusConfig())

	settingsModule := settingsmodule.NewModule(db)
	metaMgr := metadata.NewManager(cfg.Metadata, settingsModule)
	scannerModule := scannermodule.NewModule(db, cfg.Scanner, bus, metaMgr)
	eventsModule := eventsmodule.NewModule(bus)

	s := &Server{
		cfg:      cfg,
		router:   router,
		eventBus: bus,
		settings: settingsModule,
		scanner:  scannerModule,
		events:   eventsModule,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/api/health", s.handleHealth)
	s.settings.RegisterRoutes(s.router)
	s.scanner.RegisterRoutes(s.router)
	s.events.RegisterRoutes(s.router)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

// Start brings up the event bus and background modules, then serves HTTP
// until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if err := s.eventBus.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	if err := s.scanner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scanner module: %w", err)
	}

	s.eventBus.PublishAsync(events.NewSystemEvent(
		events.EventSystemStarted, "System Started", "curator is up"))

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

func (s *Server) shutdown() error {
	logger.Info("Shutting down server")

	s.eventBus.PublishAsync(events.NewSystemEvent(
		events.EventSystemStopped, "System Stopping", "curator is shutting down"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var firstErr error
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		firstErr = err
	}
	s.scanner.Stop()
	if err := s.eventBus.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Scanner exposes the scanner module, mainly for tests.
func (s *Server) Scanner() *scannermodule.Module {
	return s.scanner
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
