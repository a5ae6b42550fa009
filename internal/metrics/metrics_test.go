package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_CountsByLabel(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := New(reg)

	r.Decision("lnd_tasks", "approve")
	r.Decision("lnd_tasks", "approve")
	r.Decision("sbu_tasks", "flag")
	r.StagePath("time_analysis", "fallback")
	r.Outcome("timeout")
	r.Inference("ollama", "ok", 300*time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(r.decisions.WithLabelValues("lnd_tasks", "approve")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.decisions.WithLabelValues("sbu_tasks", "flag")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.stagePaths.WithLabelValues("time_analysis", "fallback")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.outcomes.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.inferenceOutcomes.WithLabelValues("ollama", "ok")), 0)
}

func TestRecorder_NilIsNoop(t *testing.T) {
	t.Parallel()

	var r *Recorder
	assert.NotPanics(t, func() {
		r.Decision("lnd_tasks", "approve")
		r.StagePath("time_analysis", "inference")
		r.Outcome("analyzed")
		r.Inference("ollama", "error", time.Second)
	})
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg).Decision("lnd_tasks", "pending")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `entrybrain_pipeline_decisions_total{decision="pending",intent="lnd_tasks"} 1`)
}
