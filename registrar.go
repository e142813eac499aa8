package jetpush

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/jetpush/internal/natsutil"
	"github.com/nats-io/nats.go"
)

// Dispatch outcomes recorded per message.
const (
	outcomeAck     = "ack"
	outcomeNak     = "nak"
	outcomeTerm    = "term"
	outcomeHandled = "handled"
)

// consumerAPI is the JetStream surface the Registrar needs.
type consumerAPI interface {
	StreamNameBySubject(subject string) (string, error)
	ConsumerInfo(stream, consumer string) (*nats.ConsumerInfo, error)
	AddConsumer(stream string, cfg *nats.ConsumerConfig) (*nats.ConsumerInfo, error)
	Subscribe(subject, queue string, cb nats.MsgHandler, opts ...nats.SubOpt) (subscriptionHandle, error)
}

// jsConsumerAPI adapts a nats.JetStreamContext to consumerAPI.
type jsConsumerAPI struct {
	js nats.JetStreamContext
}

func (a jsConsumerAPI) StreamNameBySubject(subject string) (string, error) {
	return a.js.StreamNameBySubject(subject)
}

func (a jsConsumerAPI) ConsumerInfo(stream, consumer string) (*nats.ConsumerInfo, error) {
	return a.js.ConsumerInfo(stream, consumer)
}

func (a jsConsumerAPI) AddConsumer(stream string, cfg *nats.ConsumerConfig) (*nats.ConsumerInfo, error) {
	return a.js.AddConsumer(stream, cfg)
}

func (a jsConsumerAPI) Subscribe(subject, queue string, cb nats.MsgHandler, opts ...nats.SubOpt) (subscriptionHandle, error) {
	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = a.js.QueueSubscribe(subject, queue, cb, opts...)
	} else {
		sub, err = a.js.Subscribe(subject, cb, opts...)
	}
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// Registrar registers durable push consumers and tracks their dispatch handles
// for coordinated teardown.
//
// A Registrar is owned by a Manager. RegisterPushConsumer is safe for concurrent use.
type Registrar struct {
	registry *dispatcherRegistry
	logger   Logger
	metrics  MetricsCollector

	mu       sync.RWMutex
	api      consumerAPI
	executor Executor

	// inflight counts messages handed to a callback whose processing has not
	// finished, including tasks queued on the executor.
	inflight atomic.Int64
}

func newRegistrar(logger Logger, metrics MetricsCollector) *Registrar {
	return &Registrar{
		registry: newDispatcherRegistry(),
		logger:   logger,
		metrics:  metrics,
	}
}

// bind attaches the live JetStream API and the optional executor. A nil api
// makes further registrations fail with ErrNotConnected.
func (r *Registrar) bind(api consumerAPI, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.api = api
	r.executor = exec
}

func (r *Registrar) current() (consumerAPI, Executor) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.api, r.executor
}

// RegisterPushConsumer creates or updates the durable consumer described by spec
// and push, subscribes handler to it, and tracks the subscription.
//
// Preconditions are checked in order: filter subjects, push spec, handler.
// Nothing is tracked unless every broker call succeeds.
//
// Parameters:
//   - ctx: Values are propagated to handler invocations; cancellation is not
//   - spec: Consumer configuration
//   - push: Push delivery parameters, required
//   - handler: Message processor
//
// Returns:
//   - error: Precondition sentinel, *ConfigError, ErrDuplicateConsumer,
//     ErrNotConnected, or an *OperationalError wrapping ErrRegistrationFailed
func (r *Registrar) RegisterPushConsumer(ctx context.Context, spec ConsumerSpec, push *PushSubscriberSpec, handler HandlerAdapter) error {
	if len(spec.FilterSubjects) == 0 {
		return ErrFilterSubjectsRequired
	}
	if push == nil {
		return ErrPushSubscriberRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	name := resolveConsumerName(spec, push)
	if name == "" {
		return ErrConsumerNameRequired
	}
	if err := errors.Join(spec.Validate(), push.Validate()); err != nil {
		return fmt.Errorf("consumer %q: %w", name, err)
	}

	api, exec := r.current()
	if api == nil {
		return ErrNotConnected
	}

	if !r.registry.reserve(name) {
		return fmt.Errorf("%w: %q", ErrDuplicateConsumer, name)
	}

	stream, sub, err := r.subscribe(ctx, api, exec, name, spec, push, handler)
	if err != nil {
		r.registry.release(name)
		r.metrics.RecordRegistration(name, false)
		r.logger.Error("push consumer registration failed", "consumer", name, "error", err)

		return newOperationalError("register", name, ErrRegistrationFailed, err)
	}

	if !r.commitIfBound(api, name, stream, sub) {
		// The connection was released while the broker calls were in flight.
		if err := sub.Unsubscribe(); err != nil && !natsutil.IsClosedHandleError(err) {
			r.logger.Warn("unsubscribe after release failed", "consumer", name, "error", err)
		}
		r.registry.release(name)
		r.metrics.RecordRegistration(name, false)

		return newOperationalError("register", name, ErrRegistrationFailed, ErrNotConnected)
	}
	r.metrics.RecordRegistration(name, true)
	r.metrics.SetActiveConsumers(r.registry.size())
	r.logger.Info("push consumer registered",
		"consumer", name,
		"stream", stream,
		"subjects", spec.FilterSubjects,
		"deliver_group", push.DeliverGroup,
	)

	return nil
}

// commitIfBound stores the handle only while api is still the bound API.
func (r *Registrar) commitIfBound(api consumerAPI, name, stream string, sub subscriptionHandle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.api == nil || r.api != api {
		return false
	}
	r.registry.commit(name, stream, sub)

	return true
}

func (r *Registrar) subscribe(
	ctx context.Context,
	api consumerAPI,
	exec Executor,
	name string,
	spec ConsumerSpec,
	push *PushSubscriberSpec,
	handler HandlerAdapter,
) (string, subscriptionHandle, error) {
	stream, err := api.StreamNameBySubject(spec.FilterSubjects[0])
	if err != nil {
		return "", nil, fmt.Errorf("resolve stream for %q: %w", spec.FilterSubjects[0], err)
	}

	cfg := spec.ConsumerConfig(push)
	if cfg.DeliverSubject == "" {
		cfg.DeliverSubject, err = existingDeliverSubject(api, stream, name)
		if err != nil {
			return "", nil, err
		}
	}
	if cfg.DeliverSubject == "" {
		cfg.DeliverSubject = nats.NewInbox()
	}

	if _, err := api.AddConsumer(stream, &cfg); err != nil {
		return "", nil, fmt.Errorf("add consumer to stream %q: %w", stream, err)
	}

	cb := r.messageHandler(context.WithoutCancel(ctx), name, spec.AckPolicy, handler, exec)
	sub, err := api.Subscribe(spec.FilterSubjects[0], push.DeliverGroup, cb, nats.Bind(stream, name), nats.ManualAck())
	if err != nil {
		return "", nil, fmt.Errorf("subscribe: %w", err)
	}

	return stream, sub, nil
}

// existingDeliverSubject returns the deliver subject of an existing consumer so a
// restart keeps its configuration unchanged.
func existingDeliverSubject(api consumerAPI, stream, name string) (string, error) {
	info, err := api.ConsumerInfo(stream, name)
	if errors.Is(err, nats.ErrConsumerNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup consumer: %w", err)
	}

	return info.Config.DeliverSubject, nil
}

// messageHandler builds the subscription callback for one consumer.
func (r *Registrar) messageHandler(ctx context.Context, name string, ackPolicy nats.AckPolicy, handler HandlerAdapter, exec Executor) nats.MsgHandler {
	process := func(msg *nats.Msg) {
		defer r.inflight.Add(-1)
		r.process(ctx, name, ackPolicy, handler, msg)
	}
	if exec == nil {
		return func(msg *nats.Msg) {
			r.inflight.Add(1)
			process(msg)
		}
	}

	return func(msg *nats.Msg) {
		r.inflight.Add(1)
		if err := exec.Execute(msg.Subject, func() { process(msg) }); err != nil {
			r.inflight.Add(-1)
			r.logger.Error("executor rejected message", "consumer", name, "subject", msg.Subject, "error", err)
			r.settle(name, ackPolicy, msg, outcomeNak)
		}
	}
}

// process decodes and handles one message, then settles it per ack policy.
// A payload that cannot be decoded is terminated rather than redelivered.
func (r *Registrar) process(ctx context.Context, name string, ackPolicy nats.AckPolicy, handler HandlerAdapter, msg *nats.Msg) {
	start := time.Now()
	outcome := outcomeAck

	event, err := handler.Decode(msg.Data)
	if err != nil {
		r.logger.Warn("message decode failed", "consumer", name, "subject", msg.Subject, "error", err)
		outcome = outcomeTerm
	} else if err := handler.Handle(ctx, event); err != nil {
		r.logger.Warn("message handler failed", "consumer", name, "subject", msg.Subject, "error", err)
		outcome = outcomeNak
	}

	outcome = r.settle(name, ackPolicy, msg, outcome)
	r.metrics.RecordMessage(name, outcome, time.Since(start).Seconds())
}

func (r *Registrar) settle(name string, ackPolicy nats.AckPolicy, msg *nats.Msg, outcome string) string {
	if ackPolicy == nats.AckNonePolicy {
		return outcomeHandled
	}

	var err error
	switch outcome {
	case outcomeAck:
		err = msg.Ack()
	case outcomeNak:
		err = msg.Nak()
	case outcomeTerm:
		err = msg.Term()
	}
	if err != nil {
		r.logger.Error("message settle failed", "consumer", name, "outcome", outcome, "error", err)
	}

	return outcome
}

// drainSubscriptions stops delivery on every registered subscription. Messages
// already delivered to the client keep flowing to their callbacks.
func (r *Registrar) drainSubscriptions() error {
	var errs []error
	for _, d := range r.registry.registered() {
		if !d.sub.IsValid() {
			continue
		}
		if err := d.sub.Drain(); err != nil && !natsutil.IsClosedHandleError(err) {
			errs = append(errs, fmt.Errorf("drain consumer %q: %w", d.name, err))
		}
	}

	return errors.Join(errs...)
}

// settled reports whether every subscription finished draining and no message
// is still being processed.
func (r *Registrar) settled() bool {
	for _, d := range r.registry.registered() {
		if d.sub.IsValid() {
			return false
		}
	}

	return r.inflight.Load() == 0
}

// CloseAll unsubscribes every tracked handle and empties the registry.
//
// Handles already invalidated by a drain are skipped. Calling it on an empty
// registry returns nil.
//
// Returns:
//   - error: Joined unsubscribe failures; the registry is empty regardless
func (r *Registrar) CloseAll() error {
	entries := r.registry.removeAll()

	var errs []error
	for _, d := range entries {
		if !d.sub.IsValid() {
			continue
		}
		if err := d.sub.Unsubscribe(); err != nil && !natsutil.IsClosedHandleError(err) {
			errs = append(errs, fmt.Errorf("close consumer %q: %w", d.name, err))
		}
	}

	if len(entries) > 0 {
		r.logger.Info("push consumers closed", "count", len(entries))
	}
	r.metrics.SetActiveConsumers(r.registry.size())

	return errors.Join(errs...)
}

// Len returns the number of registered consumers.
func (r *Registrar) Len() int {
	return r.registry.size()
}

// Names returns the registered consumer names, sorted.
func (r *Registrar) Names() []string {
	return r.registry.names()
}

// Stream returns the stream a registered consumer is bound to.
func (r *Registrar) Stream(name string) (string, bool) {
	d, ok := r.registry.get(name)
	if !ok {
		return "", false
	}

	return d.stream, true
}
