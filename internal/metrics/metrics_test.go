package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecorderRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 6)
}

func TestNewRecorderNilRegistryIsUnregisteredButUsable(t *testing.T) {
	r := NewRecorder(nil)

	r.Reconnects.Inc()
	r.PacketsDropped.Inc()
	r.JitterDepth.Set(3)

	assert.Equal(t, float64(1), counterValue(t, r.Reconnects))
	assert.Equal(t, float64(3), gaugeValue(t, r.JitterDepth))
}

func TestCountersAndGaugesRespondToCalls(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())

	r.AuthFailures.Inc()
	r.AuthFailures.Inc()
	r.FramesConcealed.Inc()
	r.ActiveSenders.Set(4)
	r.ActiveSenders.Dec()

	assert.Equal(t, float64(2), counterValue(t, r.AuthFailures))
	assert.Equal(t, float64(1), counterValue(t, r.FramesConcealed))
	assert.Equal(t, float64(3), gaugeValue(t, r.ActiveSenders))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}
