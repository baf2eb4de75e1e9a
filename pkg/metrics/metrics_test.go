package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewForTestingDoesNotPanicOnRepeatedCalls(t *testing.T) {
	assert.NotPanics(t, func() {
		NewForTesting()
		NewForTesting()
		NewForTesting()
	})
}

func TestCountersStartAtZero(t *testing.T) {
	m := NewForTesting()
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SpotsCollected))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.SummaryRuns))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ManifestUpdateErrors))
}

func TestCollectErrorsIncrementsByLabel(t *testing.T) {
	m := NewForTesting()
	m.CollectErrors.WithLabelValues("fetch").Inc()
	m.CollectErrors.WithLabelValues("fetch").Inc()
	m.CollectErrors.WithLabelValues("parse").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CollectErrors.WithLabelValues("fetch")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CollectErrors.WithLabelValues("parse")))
}

func TestAggregationsRunTracksLevel(t *testing.T) {
	m := NewForTesting()
	m.AggregationsRun.WithLabelValues("hourly").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AggregationsRun.WithLabelValues("hourly")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.AggregationsRun.WithLabelValues("daily")))
}
