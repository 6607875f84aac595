package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOTLPEndpoint(t *testing.T) {
	cases := map[string]string{
		"collector:4318":               "collector:4318",
		"http://collector":             "collector:4318",
		"https://collector.local:9999": "collector.local:9999",
		"  otel:4318  ":                "otel:4318",
	}
	for in, want := range cases {
		got, err := parseOTLPEndpoint(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestInitWithoutEndpointDisablesTracing(t *testing.T) {
	shutdown, err := Init("hotel-booking", "")
	require.NoError(t, err)
	assert.Nil(t, shutdown)
}
