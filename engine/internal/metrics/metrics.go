package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "iotwatch"

// Event results recorded by ObserveEvent.
const (
	ResultOK          = "ok"
	ResultDecodeError = "decode_error"
)

// Metrics holds the engine collectors.
type Metrics struct {
	events        *prometheus.CounterVec
	alerts        *prometheus.CounterVec
	ruleErrors    *prometheus.CounterVec
	sinkErrors    prometheus.Counter
	fetchErrors   prometheus.Counter
	processTime   prometheus.Histogram
	consumerState prometheus.Gauge
}

// New creates the engine collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Telemetry messages consumed, by result",
			},
			[]string{"result"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Alerts emitted, by rule and kind",
			},
			[]string{"rule", "kind"},
		),
		ruleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rule_errors_total",
				Help:      "Rule evaluation failures, by rule",
			},
			[]string{"rule"},
		),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Alerts that could not be persisted",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed reads from the transport",
		}),
		processTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_seconds",
			Help:      "Time to decode, evaluate and persist one message",
			Buckets:   prometheus.DefBuckets,
		}),
		consumerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumer_state",
			Help:      "Consumer state: 0 idle, 1 consuming, 2 stopped, 3 faulted",
		}),
	}
	reg.MustRegister(
		m.events,
		m.alerts,
		m.ruleErrors,
		m.sinkErrors,
		m.fetchErrors,
		m.processTime,
		m.consumerState,
	)
	return m
}

// RegisterDevices exposes the number of tracked devices, read from count at
// scrape time.
func RegisterDevices(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_devices",
			Help:      "Devices with a window in the store",
		},
		func() float64 { return float64(count()) },
	))
}

// ObserveEvent counts one consumed message and its processing time.
func (m *Metrics) ObserveEvent(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
	m.processTime.Observe(elapsed.Seconds())
}

// Alert counts one emitted alert.
func (m *Metrics) Alert(rule, kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(rule, kind).Inc()
}

// RuleError counts one failed rule evaluation.
func (m *Metrics) RuleError(rule string) {
	if m == nil {
		return
	}
	m.ruleErrors.WithLabelValues(rule).Inc()
}

// SinkError counts one alert the sink rejected.
func (m *Metrics) SinkError() {
	if m == nil {
		return
	}
	m.sinkErrors.Inc()
}

// FetchError counts one failed transport read.
func (m *Metrics) FetchError() {
	if m == nil {
		return
	}
	m.fetchErrors.Inc()
}

// SetState records the consumer state as its numeric value.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.consumerState.Set(float64(state))
}
