package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEvent(ResultOK, 2*time.Millisecond)
	m.ObserveEvent(ResultOK, 3*time.Millisecond)
	m.ObserveEvent(ResultDecodeError, time.Millisecond)
	m.Alert("field_a > 5", "instant")
	m.RuleError("broken")
	m.SinkError()
	m.FetchError()
	m.SetState(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(ResultDecodeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alerts.WithLabelValues("field_a > 5", "instant")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ruleErrors.WithLabelValues("broken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sinkErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.consumerState))
	assert.Equal(t, 1, testutil.CollectAndCount(m.processTime))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveEvent(ResultOK, time.Millisecond)
		m.Alert("r", "instant")
		m.RuleError("r")
		m.SinkError()
		m.FetchError()
		m.SetState(1)
	})
}

func TestRegisterDevices(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	RegisterDevices(reg, func() int { return n })

	count, err := testutil.GatherAndCount(reg, "iotwatch_tracked_devices")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNew_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
