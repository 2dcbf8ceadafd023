package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrementIndependently(t *testing.T) {
	m := New()
	m.BlocksProcessed.Inc()
	m.BlocksProcessed.Inc()
	m.TracesRun.WithLabelValues("rpc").Inc()
	m.RPCRetries.Inc()

	require.Equal(t, float64(2), testutil.ToFloat64(m.BlocksProcessed))
	require.Equal(t, float64(1), testutil.ToFloat64(m.TracesRun.WithLabelValues("rpc")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RPCRetries))
}

func TestNewRegistryDoesNotPanicOnDoubleConstruction(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}
