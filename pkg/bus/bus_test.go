package bus

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestConnect_Unreachable(t *testing.T) {
	cfg := Defaults()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.ConnectTimeout = 200 * time.Millisecond

	_, err := Connect(cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "bus: connect")
}

func TestPublisher_RoundTrip(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := Defaults()
	cfg.URL = url
	cfg.Stream = fmt.Sprintf("BUSTEST%d", time.Now().UnixNano())
	cfg.Subject = "bustest." + cfg.Stream

	pub, err := NewPublisher(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, []byte(`{"device_id":1,"field_a":2}`)))

	nc, err := Connect(cfg, zap.NewNop())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	t.Cleanup(func() { js.DeleteStream(context.Background(), cfg.Stream) }) //nolint:errcheck

	stream, err := js.Stream(ctx, cfg.Stream)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)

	require.NoError(t, pub.Close())
	assert.Error(t, pub.Publish(ctx, []byte(`{}`)))
}
