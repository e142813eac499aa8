package jetpush

import (
	"log/slog"

	"github.com/arloliu/jetpush/internal/logging"
	"github.com/arloliu/jetpush/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Manager with optional dependencies.
type Option func(*managerOptions)

// managerOptions holds optional Manager configuration.
type managerOptions struct {
	hooks   *Hooks
	metrics MetricsCollector
	logger  Logger
	dial    dialFunc
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions; nil callbacks are ignored
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	hooks := &jetpush.Hooks{
//	    OnConnectionEvent: func(event, url string) {
//	        log.Printf("nats %s %s", event, url)
//	    },
//	}
//	mgr, err := jetpush.NewManager(cfg, jetpush.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *managerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	mgr, err := jetpush.NewManager(cfg, jetpush.WithMetrics(jetpush.NewPrometheusMetrics(nil, "orders")))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation, e.g. NewZapLogger or NewSlogLogger
//
// Returns:
//   - Option: Functional option for NewManager
//
// Example:
//
//	logger := jetpush.NewZapLogger(zap.NewExample())
//	mgr, err := jetpush.NewManager(cfg, jetpush.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// withDialer replaces the NATS dialer. Used by tests.
func withDialer(dial dialFunc) Option {
	return func(o *managerOptions) {
		o.dial = dial
	}
}

// NewPrometheusMetrics returns a MetricsCollector backed by Prometheus.
//
// Parameters:
//   - reg: Registerer for the collectors; nil uses prometheus.DefaultRegisterer
//   - namespace: Metric namespace; empty uses "jetpush"
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

// NewZapLogger adapts a zap logger; nil discards output.
func NewZapLogger(logger *zap.Logger) Logger {
	return logging.NewZap(logger)
}

// NewSlogLogger adapts a slog logger; nil uses slog.Default().
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}
