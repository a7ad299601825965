package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/darrentmorgan/singura-sub007/internal/api"
	"github.com/darrentmorgan/singura-sub007/pkg/config"
	"github.com/darrentmorgan/singura-sub007/pkg/logger"
)

// Server wraps the gin engine and its underlying http.Server.
type Server struct {
	config     *config.ServerConfig
	log        *logger.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// Controllers holds the API controllers to mount under /api/v1.
type Controllers struct {
	Detection  *api.DetectionController
	Evaluation *api.EvaluationController
}

// New builds the HTTP server with middleware, health, metrics, and
// API routes wired. The registry serves /metrics; nil uses the default
// prometheus registry.
func New(cfg *config.ServerConfig, log *logger.Logger, registry *prometheus.Registry, controllers Controllers) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(RecoveryMiddleware(log))
	engine.Use(RequestLoggingMiddleware(log))

	engine.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	var metricsHandler http.Handler
	if registry != nil {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	} else {
		metricsHandler = promhttp.Handler()
	}
	engine.GET("/metrics", gin.WrapH(metricsHandler))

	v1 := engine.Group("/api/v1")
	if controllers.Detection != nil {
		controllers.Detection.RegisterRoutes(v1)
	}
	if controllers.Evaluation != nil {
		controllers.Evaluation.RegisterRoutes(v1)
	}

	server := &Server{
		config: cfg,
		log:    log,
		engine: engine,
	}
	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start listens until the context is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.log.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.log.Info("Shutting down HTTP server")
		return s.Shutdown()
	}
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("Server shutdown complete")
	return nil
}

// Handler exposes the underlying engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
