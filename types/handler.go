package types

import (
	"context"
	"time"
)

// HandlerOptions carries the optional consumer metadata a handler may declare.
//
// Zero values mean "not specified"; defaults are resolved when the handler is
// registered, not here.
type HandlerOptions struct {
	// DeliverGroup is the queue group shared by subscribers that load-share messages.
	DeliverGroup string

	// DeliverSubject is the subject the push consumer delivers to.
	// Empty lets the registrar reuse the consumer's existing subject or create an inbox.
	DeliverSubject string

	// ConsumerName is the display name of the push subscriber. It becomes the
	// registry key when the handler's durable name is empty.
	ConsumerName string

	// MaxDeliver is the maximum number of delivery attempts (default 3, -1 unlimited).
	MaxDeliver int

	// AckWait is the acknowledgment wait before redelivery (default 30s).
	AckWait time.Duration
}

// HandlerAdapter is the contract a message-processing unit must satisfy to be
// registered as a durable push consumer.
//
// Concurrency: Handle is called concurrently across consumers, and concurrently
// within a consumer when the executor-backed dispatcher is enabled.
type HandlerAdapter interface {
	// Durable returns the durable consumer name. It may be empty when
	// Options().ConsumerName is set.
	Durable() string

	// FilterSubjects returns the subjects the consumer receives. Must be non-empty.
	FilterSubjects() []string

	// Options returns the optional consumer metadata.
	Options() HandlerOptions

	// Decode turns a raw message payload into an application event.
	// It must be pure: no side effects and no retained references to data.
	Decode(data []byte) (any, error)

	// Handle processes a decoded event. A non-nil error requests redelivery.
	Handle(ctx context.Context, event any) error
}
