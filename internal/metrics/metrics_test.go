package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/wsclean/internal/cleanup"
	"github.com/mattjoyce/wsclean/internal/fleet"
)

func TestObserveDeletion(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveDeletion("", nil, 20*time.Millisecond)
	m.ObserveDeletion("agent-1", nil, 20*time.Millisecond)
	m.ObserveDeletion("agent-1", fmt.Errorf("wrap: %w", fleet.ErrIO), time.Second)
	m.ObserveDeletion("agent-2", fleet.ErrNoChannel, 0)
	m.ObserveDeletion("agent-2", errors.New("boom"), 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.deletions.WithLabelValues("controller", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deletions.WithLabelValues("agent-1", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deletions.WithLabelValues("agent-1", ResultIO)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deletions.WithLabelValues("agent-2", ResultNoChannel)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deletions.WithLabelValues("agent-2", ResultOther)))
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRun(fleet.PhasePost, cleanup.StatusCompleted, time.Second)
	m.ObserveRun(fleet.PhasePost, cleanup.StatusCompleted, time.Second)
	m.ObserveRun(fleet.PhasePre, cleanup.StatusAbandoned, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("post", cleanup.StatusCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("pre", cleanup.StatusAbandoned)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveDeletion("agent-1", nil, time.Second)
	m.ObserveRun(fleet.PhasePost, cleanup.StatusCompleted, time.Second)
}

func TestHandler(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRun(fleet.PhasePost, cleanup.StatusFailed, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `wsclean_cleanup_runs_total{phase="post",status="failed"} 1`), body)
}
