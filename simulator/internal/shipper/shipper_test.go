package shipper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost_SendsReading(t *testing.T) {
	var got map[string]any
	var header, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		header = r.Header.Get("x-api-key")
		contentType = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, WithAPIKey("", "k1"))
	require.NoError(t, c.Post(context.Background(), Reading{DeviceID: 42, FieldA: 7}))

	assert.Equal(t, map[string]any{"device_id": 42.0, "field_a": 7.0}, got)
	assert.Equal(t, "k1", header)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, srv.URL, c.Endpoint())
}

func TestPost_CustomHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("x-device-key")
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL, WithAPIKey("x-device-key", "k2")).Post(context.Background(), Reading{DeviceID: 1}))
	assert.Equal(t, "k2", got)
}

func TestPost_NoKeyNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"))
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Post(context.Background(), Reading{DeviceID: 1}))
}

func TestPost_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusUnauthorized, true},
		{http.StatusInternalServerError, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, `{"error":"nope"}`, tt.status)
			}))
			defer srv.Close()

			err := New(srv.URL).Post(context.Background(), Reading{DeviceID: 1})
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestPost_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url).Post(context.Background(), Reading{DeviceID: 1})
	require.Error(t, err)
	assert.False(t, IsPermanent(err))
}

func TestPost_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(srv.URL).Post(ctx, Reading{DeviceID: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
