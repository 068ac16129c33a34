package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.RecordRun("pullback", "ok")
	r.RecordRun("pullback", "ok")
	r.RecordRun("meanrev", "error")
	r.RecordBar()
	r.RecordSignal("pullback", "LONG")
	r.RecordExpiry("pullback")
	r.RecordTrade("pullback", "TARGET")
	r.RecordBreakerTrip()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("pullback", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("meanrev", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.barsProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signalsGenerated.WithLabelValues("pullback", "LONG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.signalsExpired.WithLabelValues("pullback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.tradesTotal.WithLabelValues("pullback", "TARGET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.breakerTrips))
}

func TestRegistryGathers(t *testing.T) {
	r := NewRegistry()
	r.RecordBar()

	families, err := r.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
