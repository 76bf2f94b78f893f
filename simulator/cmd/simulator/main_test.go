package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotwatch/iotwatch/simulator/internal/generator"
)

func TestRootCmd_Defaults(t *testing.T) {
	cmd := newRootCmd()
	f := cmd.Flags()

	devices, err := f.GetInt("devices")
	require.NoError(t, err)
	assert.Equal(t, generator.DefaultDevices, devices)

	freq, err := f.GetFloat64("frequency")
	require.NoError(t, err)
	assert.Equal(t, generator.DefaultFrequency, freq)

	endpoint, err := f.GetString("endpoint")
	require.NoError(t, err)
	assert.Equal(t, defaultEndpoint, endpoint)
}

func TestRootCmd_RejectsBadFleet(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--devices", "0"})
	cmd.SetOut(&discard{})
	cmd.SetErr(&discard{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
