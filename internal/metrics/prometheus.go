// Package metrics provides Prometheus metrics for the backup agent.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "firekeeper"

// PrometheusMetrics holds the agent's Prometheus collectors.
type PrometheusMetrics struct {
	// OperationCounter counts backup operations by kind and resulting state.
	OperationCounter *prometheus.CounterVec
	// OperationDuration observes the duration of finished operations by kind.
	OperationDuration *prometheus.HistogramVec
	// LastBackupBytes is the size of the most recent completed backup by kind.
	LastBackupBytes *prometheus.GaugeVec
	// LastSuccessTimestamp is the unix time of the most recent completed backup by kind.
	LastSuccessTimestamp *prometheus.GaugeVec
	// StatusChecks counts export status polls by kind and observed state.
	StatusChecks *prometheus.CounterVec
	// BuildInfo is always 1, labelled with the running version.
	BuildInfo *prometheus.GaugeVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		OperationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_operations_total",
			Help:      "Backup operations by kind and state.",
		}, []string{"kind", "state"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backup_duration_seconds",
			Help:      "Duration of finished backup operations.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"kind"}),
		LastBackupBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_size_bytes",
			Help:      "Size of the most recent completed backup.",
		}, []string{"kind"}),
		LastSuccessTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_backup_success_timestamp_seconds",
			Help:      "Unix time of the most recent completed backup.",
		}, []string{"kind"}),
		StatusChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_checks_total",
			Help:      "Export status polls by kind and observed state.",
		}, []string{"kind", "state"}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information of the running agent.",
		}, []string{"version"}),
	}

	collectors := []prometheus.Collector{
		m.OperationCounter,
		m.OperationDuration,
		m.LastBackupBytes,
		m.LastSuccessTimestamp,
		m.StatusChecks,
		m.BuildInfo,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}

	return m, nil
}

// RecordOperation records one backup operation outcome. Pending operations are only
// counted; duration and size are recorded once an operation completes or fails.
func (m *PrometheusMetrics) RecordOperation(kind, state string, duration time.Duration, sizeBytes int64) {
	m.OperationCounter.WithLabelValues(kind, state).Inc()
	if state == "pending" {
		return
	}

	m.OperationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if state == "completed" {
		m.LastBackupBytes.WithLabelValues(kind).Set(float64(sizeBytes))
		m.LastSuccessTimestamp.WithLabelValues(kind).SetToCurrentTime()
	}
}

// RecordStatusCheck records one status poll.
func (m *PrometheusMetrics) RecordStatusCheck(kind, state string) {
	m.StatusChecks.WithLabelValues(kind, state).Inc()
}

// SetBuildInfo publishes the running version.
func (m *PrometheusMetrics) SetBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}
