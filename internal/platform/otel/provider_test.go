package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), Tracing{ServiceName: "test"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation; nothing is exported.
	shutdown, err := Setup(context.Background(), Tracing{
		ServiceName: "test",
		Endpoint:    "http://192.0.2.1:4318",
		SampleRatio: 0.5,
	})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description(), Tracing{}.sampler().Description())
	assert.Equal(t, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description(), Tracing{SampleRatio: 1}.sampler().Description())
	assert.Contains(t, Tracing{SampleRatio: 0.25}.sampler().Description(), "TraceIDRatioBased{0.25}")
}
