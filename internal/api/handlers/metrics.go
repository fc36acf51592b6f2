package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// MetricsHandler serves Prometheus metrics in the exposition format.
type MetricsHandler struct {
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// NewMetricsHandler creates a new MetricsHandler. A nil gatherer uses the default registry.
func NewMetricsHandler(gatherer prometheus.Gatherer, logger zerolog.Logger) *MetricsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &MetricsHandler{
		gatherer: gatherer,
		logger:   logger.With().Str("component", "metrics_handler").Logger(),
	}
}

// RegisterRoutes registers the metrics route on the given router group.
func (h *MetricsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/metrics", h.Metrics)
}

// Metrics returns metrics in Prometheus exposition format.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	handler := promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		ErrorLog:      promLogger{h.logger},
		ErrorHandling: promhttp.ContinueOnError,
	})
	handler.ServeHTTP(c.Writer, c.Request)
}

// promLogger adapts zerolog to promhttp.Logger.
type promLogger struct {
	logger zerolog.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error().Msg(fmt.Sprint(v...))
}
