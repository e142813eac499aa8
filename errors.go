package jetpush

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of them
// with errors.Is, except registration precondition errors.
var (
	// ErrConfiguration marks errors detected before any network activity.
	ErrConfiguration = errors.New("configuration error")

	// ErrOperational marks errors detected while connecting, draining or registering.
	ErrOperational = errors.New("operational error")
)

// Sentinel errors returned by the Manager and Registrar.
var (
	// ErrConnectFailed is returned when the initial connection attempt fails or is interrupted.
	ErrConnectFailed = errors.New("connect failed")

	// ErrDrainTimeout is returned when the drain does not finish within the drain-await duration.
	ErrDrainTimeout = errors.New("drain timed out")

	// ErrDrainFailed is returned when the drain cannot be started or is interrupted.
	ErrDrainFailed = errors.New("drain failed")

	// ErrRegistrationFailed is returned when the broker rejects a consumer or subscription.
	ErrRegistrationFailed = errors.New("consumer registration failed")

	// ErrFilterSubjectsRequired is returned when a consumer has no filter subjects.
	ErrFilterSubjectsRequired = errors.New("filter subjects are required")

	// ErrPushSubscriberRequired is returned when no push subscriber spec is given.
	ErrPushSubscriberRequired = errors.New("push subscriber spec is required")

	// ErrHandlerRequired is returned when no handler is given.
	ErrHandlerRequired = errors.New("handler is required")

	// ErrConsumerNameRequired is returned when neither a durable name nor a push subscriber name is set.
	ErrConsumerNameRequired = errors.New("durable name or push subscriber name is required")

	// ErrDuplicateConsumer is returned when a consumer name is already registered.
	ErrDuplicateConsumer = errors.New("consumer already registered")

	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned when Connect is called on a connected manager.
	ErrAlreadyConnected = errors.New("already connected")
)

// ConfigError describes one invalid configuration field.
//
// It matches ErrConfiguration with errors.Is.
type ConfigError struct {
	Field  string
	Reason string
}

func newConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// OperationalError wraps a failure during connect, drain or registration.
//
// It matches ErrOperational with errors.Is and unwraps to Err, so both the
// specific sentinel (e.g. ErrDrainTimeout) and the underlying client error
// remain reachable.
type OperationalError struct {
	// Op is the failed operation: "connect", "drain" or "register".
	Op string
	// Consumer is the resolved consumer name for registration failures.
	Consumer string
	Err      error
}

func newOperationalError(op, consumer string, kind, cause error) *OperationalError {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}

	return &OperationalError{Op: op, Consumer: consumer, Err: err}
}

// Error implements error.
func (e *OperationalError) Error() string {
	if e.Consumer != "" {
		return fmt.Sprintf("%s consumer %q: %v", e.Op, e.Consumer, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is reports whether target is ErrOperational.
func (e *OperationalError) Is(target error) bool {
	return target == ErrOperational
}

// Unwrap returns the wrapped cause.
func (e *OperationalError) Unwrap() error {
	return e.Err
}
