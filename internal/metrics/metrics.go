// Package metrics exposes cleanup activity as Prometheus metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
)

// Deletion result label values.
const (
	ResultOK        = "ok"
	ResultIO        = "io_error"
	ResultAborted   = "channel_aborted"
	ResultNoChannel = "no_channel"
	ResultOther     = "error"
)

// Metrics is the Prometheus implementation of cleanup.Recorder. A nil
// *Metrics records nothing.
type Metrics struct {
	deletions        *prometheus.CounterVec
	deletionDuration *prometheus.HistogramVec
	runs             *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

var _ cleanup.Recorder = (*Metrics)(nil)

// New registers the cleanup metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		deletions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsclean_workspace_deletions_total",
				Help: "Workspace deletions by node and result",
			},
			[]string{"node", "result"},
		),
		deletionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wsclean_workspace_deletion_duration_seconds",
				Help:    "Time spent deleting one workspace",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms .. ~164s
			},
			[]string{"result"},
		),
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "wsclean_cleanup_runs_total",
				Help: "Cleanup runs by phase and final status",
			},
			[]string{"phase", "status"},
		),
		runDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wsclean_cleanup_run_duration_seconds",
				Help:    "Wall time of a cleanup run",
				Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
			},
			[]string{"phase"},
		),
	}
}

// ObserveDeletion records one workspace deletion attempt.
func (m *Metrics) ObserveDeletion(node string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := resultOf(err)
	m.deletions.WithLabelValues(fleet.DisplayName(node), result).Inc()
	m.deletionDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(phase fleet.Phase, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(phase), status).Inc()
	m.runDuration.WithLabelValues(string(phase)).Observe(duration.Seconds())
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, fleet.ErrIO):
		return ResultIO
	case errors.Is(err, fleet.ErrChannelAborted):
		return ResultAborted
	case errors.Is(err, fleet.ErrNoChannel):
		return ResultNoChannel
	default:
		return ResultOther
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
