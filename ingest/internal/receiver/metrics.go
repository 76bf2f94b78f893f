package receiver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ingest collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	publish  prometheus.Histogram
}

// NewMetrics creates the ingest collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "iotwatch",
				Subsystem: "ingest",
				Name:      "requests_total",
				Help:      "POST /data requests, by response code",
			},
			[]string{"code"},
		),
		publish: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "iotwatch",
			Subsystem: "ingest",
			Name:      "publish_seconds",
			Help:      "Time to publish one message to the stream",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.publish)
	return m
}

func (m *Metrics) request(code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) published(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.publish.Observe(elapsed.Seconds())
}
