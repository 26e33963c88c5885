package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/server/handlers"
	"github.com/vzahanych/weather-alert-bot/internal/server/middlewares"
	"github.com/vzahanych/weather-alert-bot/pkg/metrics"
	"github.com/vzahanych/weather-alert-bot/pkg/telemetry"
	"go.uber.org/zap"
)

// Monitor is what the HTTP API needs from the check runner.
type Monitor interface {
	handlers.Evaluator
	handlers.ReadinessProbe
}

type Server struct {
	engine *gin.Engine
	server *http.Server
	clock  clockwork.Clock
	logger *zap.Logger
	tele   *telemetry.Telemetry
}

func NewServer(cfg config.ServerConfig, mon Monitor, gatherer prometheus.Gatherer, m *metrics.Metrics, clock clockwork.Clock, logger *zap.Logger, tele *telemetry.Telemetry) *Server {
	logger = logger.With(zap.String("component", "http"))

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middlewares.RequestIDMiddleware())
	engine.Use(middlewares.LoggingMiddleware(logger, "/health/live", "/health/ready", "/metrics"))
	engine.Use(middlewares.RecoveryMiddleware(logger, true))
	engine.Use(middlewares.TelemetryMiddleware(logger, tele))
	engine.Use(middlewares.MetricsMiddleware(m))

	s := &Server{
		engine: engine,
		clock:  clock,
		logger: logger,
		tele:   tele,
	}
	s.setupRoutes(mon, gatherer)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(mon Monitor, gatherer prometheus.Gatherer) {
	weatherHandler := handlers.NewWeatherHandler(mon, s.clock, s.logger)
	healthHandler := handlers.NewHealthHandler(mon, s.clock, s.logger)

	// Business endpoints
	api := s.engine.Group("/api/v1")
	api.GET("/alerts", weatherHandler.GetAlerts)
	api.GET("/forecasts/:location/summary", weatherHandler.GetSummary)

	// Health endpoints (Kubernetes friendly)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/health/live", healthHandler.Liveness)
	s.engine.GET("/health/ready", healthHandler.Readiness)

	// Monitoring endpoints
	s.engine.GET("/metrics", handlers.NewMetricsHandler(gatherer, s.logger).ServeMetrics)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down server")
	return s.server.Shutdown(ctx)
}
