package metrics

import (
	"testing"

	"github.com/arloliu/jetpush/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_AllMethods(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordStateTransition(types.StateDisconnected, types.StateConnecting)
		metrics.RecordStateTransition(types.State(999), types.State(1000))
		metrics.RecordConnectionEvent("connected")
		metrics.RecordConnectionEvent("")
		metrics.RecordAsyncError()
		metrics.RecordDrain(1.5, true)
		metrics.RecordDrain(-1, false)
		metrics.RecordRegistration("orders-sub", true)
		metrics.RecordRegistration("", false)
		metrics.SetActiveConsumers(0)
		metrics.SetActiveConsumers(-1)
		metrics.RecordMessage("orders-sub", "ack", 0.01)
	})
}

func TestNopMetricsImplementsCollector(_ *testing.T) {
	var _ types.MetricsCollector = (*NopMetrics)(nil)
}

func BenchmarkNopMetrics(b *testing.B) {
	metrics := NewNop()

	for b.Loop() {
		metrics.RecordMessage("orders-sub", "ack", 0.001)
	}
}
