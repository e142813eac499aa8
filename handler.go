package jetpush

import (
	"context"
	"fmt"
	"slices"

	"github.com/bytedance/sonic"
)

// Handler is a typed HandlerAdapter built from a decode and a handle function.
type Handler[T any] struct {
	durable  string
	subjects []string
	opts     HandlerOptions
	decode   func(data []byte) (T, error)
	handle   func(ctx context.Context, event T) error
}

var _ HandlerAdapter = (*Handler[struct{}])(nil)

// NewHandler creates a typed handler.
//
// Parameters:
//   - durable: Durable consumer name, may be empty when opts.ConsumerName is set
//   - subjects: Filter subjects
//   - decode: Pure payload decoder, e.g. DecodeJSON[T]
//   - handle: Event processor; a non-nil error requests redelivery
//   - opts: Optional consumer metadata
//
// Example:
//
//	h := jetpush.NewHandler("orders-sub", []string{"orders.created"},
//	    jetpush.DecodeJSON[OrderCreated],
//	    func(ctx context.Context, ev OrderCreated) error { return svc.Apply(ctx, ev) },
//	    jetpush.HandlerOptions{DeliverGroup: "orders-workers", MaxDeliver: 5},
//	)
func NewHandler[T any](
	durable string,
	subjects []string,
	decode func(data []byte) (T, error),
	handle func(ctx context.Context, event T) error,
	opts HandlerOptions,
) *Handler[T] {
	return &Handler[T]{
		durable:  durable,
		subjects: slices.Clone(subjects),
		opts:     opts,
		decode:   decode,
		handle:   handle,
	}
}

// Durable implements HandlerAdapter.
func (h *Handler[T]) Durable() string { return h.durable }

// FilterSubjects implements HandlerAdapter.
func (h *Handler[T]) FilterSubjects() []string { return slices.Clone(h.subjects) }

// Options implements HandlerAdapter.
func (h *Handler[T]) Options() HandlerOptions { return h.opts }

// Decode implements HandlerAdapter.
func (h *Handler[T]) Decode(data []byte) (any, error) {
	return h.decode(data)
}

// Handle implements HandlerAdapter.
func (h *Handler[T]) Handle(ctx context.Context, event any) error {
	ev, ok := event.(T)
	if !ok {
		return fmt.Errorf("handler %q: unexpected event type %T", h.durable, event)
	}

	return h.handle(ctx, ev)
}

// DecodeJSON decodes a JSON payload into T.
func DecodeJSON[T any](data []byte) (T, error) {
	var v T
	if err := sonic.ConfigStd.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode json: %w", err)
	}

	return v, nil
}

// DecodeString returns the payload as a string.
func DecodeString(data []byte) (string, error) {
	return string(data), nil
}

// DecodeBytes returns a copy of the payload.
func DecodeBytes(data []byte) ([]byte, error) {
	return slices.Clone(data), nil
}

// specsFromHandler derives the consumer and push specs a handler declares,
// resolving unspecified options to their defaults.
func specsFromHandler(h HandlerAdapter) (ConsumerSpec, *PushSubscriberSpec, error) {
	subjects := h.FilterSubjects()
	if len(subjects) == 0 {
		return ConsumerSpec{}, nil, ErrFilterSubjectsRequired
	}
	opts := h.Options()

	b := NewConsumerSpecBuilder(h.Durable(), subjects...)
	if opts.MaxDeliver != 0 {
		b.MaxDeliver(opts.MaxDeliver)
	}
	if opts.AckWait != 0 {
		b.AckWait(opts.AckWait)
	}

	spec, err := b.Build()
	if err != nil {
		return ConsumerSpec{}, nil, err
	}

	push, err := NewPushSubscriberSpecBuilder().
		Name(opts.ConsumerName).
		DeliverSubject(opts.DeliverSubject).
		DeliverGroup(opts.DeliverGroup).
		Build()
	if err != nil {
		return ConsumerSpec{}, nil, err
	}

	return spec, push, nil
}
