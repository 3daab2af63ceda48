package server

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/openhealth/modelserve/internal/config"
	"github.com/openhealth/modelserve/internal/monitoring"
)

// Server runs the serving API and, when metrics are enabled, a separate
// Prometheus listener.
type Server struct {
	httpServer    *http.Server
	metricsServer *http.Server
	logger        *logrus.Logger
}

// New creates the HTTP server pair.
func New(cfg *config.Config, handler http.Handler, prom *monitoring.PromMetrics, logger *logrus.Logger) *Server {
	s := &Server{
		httpServer: &http.Server{
			Addr:         cfg.GetAddress(),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		logger: logger,
	}

	if cfg.Monitoring.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", prom.Handler())
		s.metricsServer = &http.Server{
			Addr:    cfg.GetMetricsAddress(),
			Handler: metricsMux,
		}
	}

	return s
}

// Start runs both listeners until they fail or are shut down. It blocks on
// the main listener.
func (s *Server) Start() error {
	if s.metricsServer != nil {
		go func() {
			s.logger.WithField("address", s.metricsServer.Addr).Info("Starting metrics server")
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	s.logger.WithField("address", s.httpServer.Addr).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Error("Metrics server shutdown failed")
		}
	}
	return s.httpServer.Shutdown(ctx)
}
