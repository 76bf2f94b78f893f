package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iotwatch/iotwatch/pkg/pg"
	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

func alert(id string, device int64) telemetry.Alert {
	return telemetry.Alert{
		ID:        id,
		DeviceID:  device,
		Rule:      "field_a > 5",
		Kind:      telemetry.KindInstant,
		Value:     6,
		Timestamp: 1700000000,
		FiredAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMulti_ContinuesPastFailures(t *testing.T) {
	var got []string
	record := func(name string) Sink {
		return Func(func(_ context.Context, a telemetry.Alert) error {
			got = append(got, name+":"+a.ID)
			return nil
		})
	}
	failing := Func(func(context.Context, telemetry.Alert) error { return errors.New("boom") })

	m := Multi{record("a"), failing, record("b"), &Postgres{}}
	err := m.Persist(context.Background(), alert("x", 1))

	assert.Equal(t, []string{"a:x", "b:x"}, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
	assert.Contains(t, err.Error(), "boom")
}

func TestMulti_Empty(t *testing.T) {
	assert.NoError(t, Multi{}.Persist(context.Background(), alert("x", 1)))
}

func TestHistory_NewestFirstAndBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Persist(context.Background(), alert(fmt.Sprint(i), int64(i%2))))
	}
	assert.Equal(t, 3, h.Len())

	ids := func(as []telemetry.Alert) []string {
		out := make([]string, len(as))
		for i, a := range as {
			out[i] = a.ID
		}
		return out
	}
	assert.Equal(t, []string{"5", "4", "3"}, ids(h.Recent(0, nil)))
	assert.Equal(t, []string{"5", "4"}, ids(h.Recent(2, nil)))

	odd := int64(1)
	assert.Equal(t, []string{"5", "3"}, ids(h.Recent(0, &odd)))
}

func TestHistory_ZeroCapacity(t *testing.T) {
	h := NewHistory(0)
	require.NoError(t, h.Persist(context.Background(), alert("x", 1)))
	assert.Empty(t, h.Recent(0, nil))
	assert.Zero(t, h.Cap())
}

func TestHistory_Concurrent(t *testing.T) {
	h := NewHistory(50)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = h.Persist(context.Background(), alert("x", 1))
				_ = h.Recent(5, nil)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, h.Len())
}

// hookServer records request bodies and answers with status.
func hookServer(t *testing.T, status int) (*httptest.Server, func() []map[string]interface{}) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		var m map[string]interface{}
		_ = json.Unmarshal(raw, &m)
		mu.Lock()
		bodies = append(bodies, m)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []map[string]interface{} {
		mu.Lock()
		defer mu.Unlock()
		return append([]map[string]interface{}(nil), bodies...)
	}
}

func TestWebhook_Payloads(t *testing.T) {
	slack, slackBodies := hookServer(t, http.StatusOK)
	teams, teamsBodies := hookServer(t, http.StatusOK)
	generic, genericBodies := hookServer(t, http.StatusOK)

	w := NewWebhook([]Target{
		{Type: "slack", URL: slack.URL},
		{Type: "teams", URL: teams.URL},
		{Type: "http", URL: generic.URL},
		{Type: "http", URL: ""},
	}, nil, zaptest.NewLogger(t))

	require.NoError(t, w.Persist(context.Background(), alert("a1", 42)))

	require.Len(t, slackBodies(), 1)
	assert.Contains(t, slackBodies()[0]["text"], "device 42")

	require.Len(t, teamsBodies(), 1)
	assert.Equal(t, "MessageCard", teamsBodies()[0]["@type"])
	assert.Equal(t, "field_a > 5", teamsBodies()[0]["summary"])

	require.Len(t, genericBodies(), 1)
	inner, ok := genericBodies()[0]["alert"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a1", inner["id"])
}

func TestWebhook_ErrorStatus(t *testing.T) {
	bad, _ := hookServer(t, http.StatusBadGateway)
	good, goodBodies := hookServer(t, http.StatusOK)

	w := NewWebhook([]Target{
		{Type: "http", URL: bad.URL},
		{Type: "http", URL: good.URL},
	}, nil, zaptest.NewLogger(t))

	err := w.Persist(context.Background(), alert("a1", 42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
	assert.Len(t, goodBodies(), 1, "one failing target does not block the others")
}

func TestWebhook_RespectsContextDeadline(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer slow.Close()

	w := NewWebhook([]Target{{Type: "http", URL: slow.URL}}, nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Error(t, w.Persist(ctx, alert("a1", 42)))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestPostgres_NilDB(t *testing.T) {
	var p *Postgres
	assert.ErrorIs(t, p.Persist(context.Background(), alert("x", 1)), ErrSinkUnavailable)
	assert.ErrorIs(t, NewPostgres(nil).EnsureSchema(context.Background()), ErrSinkUnavailable)
	_, err := NewPostgres(nil).Recent(context.Background(), 10, nil)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
}

func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	ctx := context.Background()
	db, err := pg.Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	table := fmt.Sprintf("alerts_it_%d", time.Now().UnixNano())
	p := NewPostgres(db, WithTable(table))
	require.NoError(t, p.EnsureSchema(ctx))
	t.Cleanup(func() { _, _ = db.Exec("DROP TABLE " + pg.Ident(table)) })

	a := alert("it-1", 42)
	require.NoError(t, p.Persist(ctx, a))
	require.NoError(t, p.Persist(ctx, a), "duplicate ids are ignored")

	require.NoError(t, p.Persist(ctx, alert("it-2", 7)))

	got, err := p.Recent(ctx, 10, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	dev := int64(42)
	got, err = p.Recent(ctx, 10, &dev)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
	assert.Equal(t, a.DeviceID, got[0].DeviceID)
	assert.Equal(t, a.Kind, got[0].Kind)
	assert.True(t, a.FiredAt.Equal(got[0].FiredAt))
}
