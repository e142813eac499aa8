// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/arloliu/jetpush/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
//
// Example:
//
//	mgr, err := jetpush.NewManager(cfg, jetpush.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ConnectionMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {}

// RecordConnectionEvent discards the connection event metric.
func (n *NopMetrics) RecordConnectionEvent(_ /* event */ string) {}

// RecordAsyncError discards the async error metric.
func (n *NopMetrics) RecordAsyncError() {}

// RecordDrain discards the drain metric.
func (n *NopMetrics) RecordDrain(_ /* duration */ float64, _ /* success */ bool) {}

// ConsumerMetrics implementation

// RecordRegistration discards the registration metric.
func (n *NopMetrics) RecordRegistration(_ /* consumer */ string, _ /* success */ bool) {}

// SetActiveConsumers discards the active consumers gauge.
func (n *NopMetrics) SetActiveConsumers(_ /* count */ int) {}

// DispatchMetrics implementation

// RecordMessage discards the message outcome metric.
func (n *NopMetrics) RecordMessage(_ /* consumer */ string, _ /* outcome */ string, _ /* duration */ float64) {
}
