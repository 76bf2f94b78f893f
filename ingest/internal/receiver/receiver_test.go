package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, data)
	return nil
}

type fakeArchive struct {
	events []telemetry.Event
	bodies []string
	err    error
}

func (a *fakeArchive) Store(_ context.Context, ev telemetry.Event, body []byte, _ time.Time) error {
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, ev)
	a.bodies = append(a.bodies, string(body))
	return nil
}

var fixedNow = time.Unix(1700000000, 0)

func newHandler(t *testing.T, pub Publisher, opts ...Option) *Handler {
	t.Helper()
	h := New(pub, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	h.now = func() time.Time { return fixedNow }
	return h
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/data", strings.NewReader(body)))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	return m
}

func TestPost_AcceptsAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	rec := post(newHandler(t, pub), `{"device_id": 42, "field_a": 7, "unit": "C"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "success"}, decodeBody(t, rec))

	require.Len(t, pub.msgs, 1)
	ev, err := telemetry.Decode(pub.msgs[0], time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(42), ev.DeviceID)
	assert.Equal(t, 7.0, ev.FieldA)
	assert.Equal(t, float64(fixedNow.Unix()), ev.Timestamp, "receive time is stamped on the published event")
	assert.JSONEq(t, `"C"`, string(ev.Extra["unit"]))
}

func TestPost_KeepsSenderTimestamp(t *testing.T) {
	pub := &fakePublisher{}
	rec := post(newHandler(t, pub), `{"device_id": 1, "field_a": 0, "timestamp": 12.5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ev, err := telemetry.Decode(pub.msgs[0], time.Now())
	require.NoError(t, err)
	assert.Equal(t, 12.5, ev.Timestamp)
}

func TestPost_InvalidBody(t *testing.T) {
	bodies := []string{
		``,
		`not json`,
		`[]`,
		`{"field_a": 1}`,
		`{"device_id": 1}`,
		`{"device_id": "42", "field_a": 1}`,
		`{"device_id": 1.5, "field_a": 1}`,
		`{"device_id": 1, "field_a": "high"}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			pub := &fakePublisher{}
			rec := post(newHandler(t, pub), body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid data format", decodeBody(t, rec)["error"])
			assert.Empty(t, pub.msgs)
		})
	}
}

func TestPost_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(t, &fakePublisher{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestPost_BodyTooLarge(t *testing.T) {
	pub := &fakePublisher{}
	h := newHandler(t, pub, WithMaxBodyBytes(16))
	rec := post(h, `{"device_id": 42, "field_a": 7, "padding": "xxxxxxxxxxxx"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, pub.msgs)
}

func TestPost_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("no responders")}
	rec := post(newHandler(t, pub), `{"device_id": 42, "field_a": 7}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "transport unavailable", decodeBody(t, rec)["error"])
}

func TestPost_ArchivesBeforePublish(t *testing.T) {
	pub := &fakePublisher{}
	arc := &fakeArchive{}
	body := `{"device_id": 42, "field_a": 7}`
	rec := post(newHandler(t, pub, WithArchive(arc)), body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, arc.events, 1)
	assert.Equal(t, int64(42), arc.events[0].DeviceID)
	assert.Equal(t, body, arc.bodies[0], "the raw body is archived unchanged")
	assert.Len(t, pub.msgs, 1)
}

func TestPost_ArchiveFailureSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	arc := &fakeArchive{err: errors.New("disk full")}
	rec := post(newHandler(t, pub, WithArchive(arc)), `{"device_id": 42, "field_a": 7}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, pub.msgs)
}

func TestMetrics_CountsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	h := newHandler(t, &fakePublisher{}, WithMetrics(m))

	post(h, `{"device_id": 1, "field_a": 1}`)
	post(h, `{"device_id": 1, "field_a": 1}`)
	post(h, `{}`)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("400")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.publish))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.request(http.StatusOK)
	m.published(time.Millisecond)
}
