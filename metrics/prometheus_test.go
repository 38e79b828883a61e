package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	r.IncCounter(EventPurchaseConfirmed, map[string]string{"subject": "seeker"})
	r.IncCounter(EventPurchaseConfirmed, map[string]string{"subject": "seeker"})
	r.ObserveLatency(OpPurchase, 2*time.Second, map[string]string{"subject": "seeker"})

	p := r.(*PrometheusRecorder)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.counters.WithLabelValues(EventPurchaseConfirmed, "seeker")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.histogram))
}

func TestPrometheusRecorderDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)
}
