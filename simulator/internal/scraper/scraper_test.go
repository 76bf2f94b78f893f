package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()

	events := prometheus.NewCounterVec(prometheus.CounterOpts{Name: metricEvents, Help: "h"}, []string{"result"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: metricAlerts, Help: "h"}, []string{"rule", "kind"})
	devices := prometheus.NewGauge(prometheus.GaugeOpts{Name: metricDevices, Help: "h"})
	state := prometheus.NewGauge(prometheus.GaugeOpts{Name: metricState, Help: "h"})
	reg.MustRegister(events, alerts, devices, state)

	events.WithLabelValues("ok").Add(100)
	events.WithLabelValues("decode_error").Add(2)
	alerts.WithLabelValues("field_a > 5", "instant").Add(40)
	alerts.WithLabelValues("field_a > 5 for 10 messages", "continuous").Add(1)
	devices.Set(10)
	state.Set(1)
	return reg
}

func TestScrape_Summary(t *testing.T) {
	srv := httptest.NewServer(promhttp.HandlerFor(engineRegistry(t), promhttp.HandlerOpts{}))
	defer srv.Close()

	sum, err := New(srv.URL, "x-api-key", "").Scrape(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"ok": 100, "decode_error": 2}, sum.Events)
	assert.Equal(t, 40.0, sum.Alerts["field_a > 5"])
	assert.Equal(t, 1.0, sum.Alerts["field_a > 5 for 10 messages"])
	assert.Equal(t, 41.0, sum.TotalAlerts())
	assert.Equal(t, 10.0, sum.Devices)
	assert.Equal(t, 1.0, sum.ConsumerState)
	assert.False(t, sum.ScrapedAt.IsZero())
}

func TestScrape_MissingFamiliesReadZero(t *testing.T) {
	srv := httptest.NewServer(promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}))
	defer srv.Close()

	sum, err := New(srv.URL, "x-api-key", "").Scrape(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.Events)
	assert.Zero(t, sum.TotalAlerts())
	assert.Zero(t, sum.Devices)
}

func TestScrape_SendsAPIKey(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-api-key")
		w.Write([]byte("iotwatch_tracked_devices 3\n")) //nolint:errcheck
	}))
	defer srv.Close()

	sum, err := New(srv.URL, "x-api-key", "secret").Scrape(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
	assert.Equal(t, 3.0, sum.Devices)
}

func TestScrape_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "x-api-key", "").Scrape(context.Background())
	assert.ErrorContains(t, err, "unexpected status 401")
}

func TestParseMetrics_Garbage(t *testing.T) {
	_, err := parseMetrics(strings.NewReader("{{{ not metrics"))
	assert.Error(t, err)
}
