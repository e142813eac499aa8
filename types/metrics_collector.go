package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// Message metrics are recorded from NATS dispatch goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ConnectionMetrics
	ConsumerMetrics
	DispatchMetrics
}

// ConnectionMetrics defines metrics for the connection lifecycle.
type ConnectionMetrics interface {
	// RecordStateTransition records a manager state transition.
	RecordStateTransition(from, to State)

	// RecordConnectionEvent records a NATS connection event.
	//
	// Parameters:
	//   - event: Event name ("connected", "disconnected", "reconnected", "closed", "discovered")
	RecordConnectionEvent(event string)

	// RecordAsyncError records an asynchronous error reported by the NATS client.
	RecordAsyncError()

	// RecordDrain records the outcome of a drain.
	//
	// Parameters:
	//   - duration: Time spent draining in seconds
	//   - success: false on timeout or drain failure
	RecordDrain(duration float64, success bool)
}

// ConsumerMetrics defines metrics for push consumer registration.
type ConsumerMetrics interface {
	// RecordRegistration records a registration attempt.
	//
	// Parameters:
	//   - consumer: Resolved consumer name
	//   - success: true if the consumer was subscribed and tracked
	RecordRegistration(consumer string, success bool)

	// SetActiveConsumers sets the number of tracked dispatch handles (gauge metric).
	SetActiveConsumers(count int)
}

// DispatchMetrics defines metrics for message delivery to handlers.
type DispatchMetrics interface {
	// RecordMessage records the outcome of handling one message.
	//
	// Parameters:
	//   - consumer: Resolved consumer name
	//   - outcome: "ack", "nak", "term" or "handled" (ack policy none)
	//   - duration: Decode plus handle time in seconds
	RecordMessage(consumer string, outcome string, duration float64)
}
