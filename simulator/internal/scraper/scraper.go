package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
)

const defaultScrapeTimeout = 10 * time.Second

// Engine metric names read by Scrape.
const (
	metricEvents  = "iotwatch_events_total"
	metricAlerts  = "iotwatch_alerts_total"
	metricDevices = "iotwatch_tracked_devices"
	metricState   = "iotwatch_consumer_state"
)

// Summary is the engine's view of a simulation run.
type Summary struct {
	ScrapedAt time.Time

	// Events counts consumed messages by result (ok, decode_error).
	Events map[string]float64

	// Alerts counts emitted alerts by rule name.
	Alerts map[string]float64

	Devices       float64
	ConsumerState float64
}

// TotalAlerts sums Alerts over every rule.
func (s Summary) TotalAlerts() float64 {
	var total float64
	for _, v := range s.Alerts {
		total += v
	}
	return total
}

// Scraper polls one engine metrics endpoint.
type Scraper struct {
	url    string
	client *http.Client
	header string
	key    string
}

// New returns a Scraper for url. When key is non-empty it is sent in header.
func New(url, header, key string) *Scraper {
	return &Scraper{
		url:    url,
		client: &http.Client{Timeout: defaultScrapeTimeout},
		header: header,
		key:    key,
	}
}

// Scrape fetches the endpoint once and summarises the iotwatch families.
// Families the engine has not exported yet read as zero.
func (s *Scraper) Scrape(ctx context.Context) (Summary, error) {
	mfs, err := s.fetch(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("scraper %s: %w", s.url, err)
	}
	return Summary{
		ScrapedAt:     time.Now().UTC(),
		Events:        byLabel(mfs[metricEvents], "result"),
		Alerts:        byLabel(mfs[metricAlerts], "rule"),
		Devices:       sumFamily(mfs[metricDevices]),
		ConsumerState: sumFamily(mfs[metricState]),
	}, nil
}

func (s *Scraper) fetch(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if s.key != "" {
		req.Header.Set(s.header, s.key)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r. A partial result
// is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	parser := expfmt.NewTextParser(model.UTF8Validation)
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// byLabel sums a family's samples grouped by the value of label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				key = lp.GetValue()
				break
			}
		}
		out[key] += value(m)
	}
	return out
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
