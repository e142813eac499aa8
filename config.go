package jetpush

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/nats-io/nats.go"
	"gopkg.in/yaml.v3"
)

// UnlimitedReconnects makes the NATS client retry reconnecting forever.
const UnlimitedReconnects = -1

const (
	// DefaultDrainAwaitSeconds is the drain bound used by DefaultSettings.
	DefaultDrainAwaitSeconds = 10

	// DefaultNamePrefix prefixes generated connection names.
	DefaultNamePrefix = "jetpush"

	// EnvPrefix is the environment variable prefix read by LoadSettings.
	EnvPrefix = "NATS"
)

// ExecutorSettings configures the executor-backed dispatcher.
type ExecutorSettings struct {
	// PoolSize is the number of dispatch workers.
	PoolSize int `yaml:"poolSize" envconfig:"POOL_SIZE"`

	// NamingPrefix names the workers "<prefix>-<index>".
	NamingPrefix string `yaml:"namingPrefix" envconfig:"NAMING_PREFIX"`
}

// Settings is the external configuration surface, loaded from YAML and the environment.
//
// MaxReconnects and DrainAwaitSeconds are pointers so an absent value can be told
// apart from zero. Absent required values are rejected by ConnectionConfigFromSettings.
type Settings struct {
	// URLs is a comma-separated list of server URLs, tried in order.
	URLs string `yaml:"urls" envconfig:"URLS"`

	// MaxReconnects is the reconnect attempt limit; -1 retries forever.
	MaxReconnects *int `yaml:"maxReconnects" envconfig:"MAX_RECONNECTS"`

	// TraceConnection enables detailed connection lifecycle logging.
	TraceConnection bool `yaml:"traceConnection" envconfig:"TRACE_CONNECTION"`

	// DrainAwaitSeconds bounds the graceful drain on disconnect. 0 closes without draining.
	DrainAwaitSeconds *int `yaml:"drainAwaitSeconds" envconfig:"DRAIN_AWAIT_SECONDS"`

	// UseDispatcherWithExecutor runs handlers on a worker pool instead of the
	// NATS client's per-subscription goroutines.
	UseDispatcherWithExecutor bool `yaml:"useDispatcherWithExecutor" envconfig:"USE_DISPATCHER_WITH_EXECUTOR"`

	Executor ExecutorSettings `yaml:"executor" envconfig:"EXECUTOR"`

	// Name is the client connection name reported to the server.
	Name string `yaml:"name" envconfig:"NAME"`

	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration `yaml:"connectTimeout" envconfig:"CONNECT_TIMEOUT"`
}

// DefaultSettings returns Settings populated with documented defaults.
//
// Returns:
//   - Settings: local server, unlimited reconnects, 10 second drain
func DefaultSettings() Settings {
	maxReconnects := UnlimitedReconnects
	drain := DefaultDrainAwaitSeconds

	return Settings{
		URLs:              nats.DefaultURL,
		MaxReconnects:     &maxReconnects,
		DrainAwaitSeconds: &drain,
		ConnectTimeout:    nats.DefaultTimeout,
	}
}

// LoadSettings reads Settings from a YAML file and then applies NATS_* environment overrides.
//
// Unknown YAML keys are rejected. An empty path skips the file and reads only the environment.
//
// Parameters:
//   - path: YAML file path, may be empty
//
// Returns:
//   - Settings: Loaded settings, not yet validated
//   - error: I/O, parse or environment errors
func LoadSettings(path string) (Settings, error) {
	var s Settings

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return Settings{}, fmt.Errorf("%w: parse %s: %w", ErrConfiguration, path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &s); err != nil {
		return Settings{}, fmt.Errorf("%w: environment: %w", ErrConfiguration, err)
	}

	return s, nil
}

// ConnectionConfig is the validated, immutable description of how to reach the
// broker and how to behave during connect and drain.
//
// Obtain one from ConnectionConfigBuilder.Build or ConnectionConfigFromSettings.
type ConnectionConfig struct {
	serverURLs                []string
	maxReconnects             int
	traceConnection           bool
	drainAwait                time.Duration
	useDispatcherWithExecutor bool
	executorPoolSize          int
	executorNamingPrefix      string
	executor                  Executor
	name                      string
	connectTimeout            time.Duration
}

// ServerURLs returns a copy of the server URLs in dial order.
func (c ConnectionConfig) ServerURLs() []string { return slices.Clone(c.serverURLs) }

// MaxReconnects returns the reconnect limit; UnlimitedReconnects retries forever.
func (c ConnectionConfig) MaxReconnects() int { return c.maxReconnects }

// TraceConnection reports whether connection lifecycle tracing is enabled.
func (c ConnectionConfig) TraceConnection() bool { return c.traceConnection }

// DrainAwait returns the drain bound. Zero means close without draining.
func (c ConnectionConfig) DrainAwait() time.Duration { return c.drainAwait }

// UseDispatcherWithExecutor reports whether handlers run on an executor.
func (c ConnectionConfig) UseDispatcherWithExecutor() bool { return c.useDispatcherWithExecutor }

// ExecutorPoolSize returns the worker count of the owned executor pool.
func (c ConnectionConfig) ExecutorPoolSize() int { return c.executorPoolSize }

// ExecutorNamingPrefix returns the worker naming prefix of the owned executor pool.
func (c ConnectionConfig) ExecutorNamingPrefix() string { return c.executorNamingPrefix }

// Executor returns the externally supplied executor, or nil.
func (c ConnectionConfig) Executor() Executor { return c.executor }

// Name returns the client connection name.
func (c ConnectionConfig) Name() string { return c.name }

// ConnectTimeout returns the dial timeout.
func (c ConnectionConfig) ConnectTimeout() time.Duration { return c.connectTimeout }

// ConnectionConfigBuilder assembles a ConnectionConfig.
//
// Setters only record values; Build validates everything in one pass.
// Server URLs, max reconnects and drain await must be set explicitly.
//
// Example:
//
//	cfg, err := jetpush.NewConnectionConfigBuilder().
//	    ServerURLs("nats://a:4222,nats://b:4222").
//	    MaxReconnects(jetpush.UnlimitedReconnects).
//	    DrainAwaitSeconds(10).
//	    Build()
type ConnectionConfigBuilder struct {
	urls             []string
	urlsSet          bool
	maxReconnects    int
	maxReconnectsSet bool
	drainSeconds     int
	drainSet         bool
	trace            bool
	useExecutor      bool
	poolSize         int
	namingPrefix     string
	executor         Executor
	name             string
	connectTimeout   time.Duration
}

// NewConnectionConfigBuilder returns an empty builder.
func NewConnectionConfigBuilder() *ConnectionConfigBuilder {
	return &ConnectionConfigBuilder{}
}

// ServerURLs appends server URLs. Each argument may itself be a comma-separated list.
func (b *ConnectionConfigBuilder) ServerURLs(urls ...string) *ConnectionConfigBuilder {
	b.urlsSet = true
	b.urls = append(b.urls, urls...)

	return b
}

// MaxReconnects sets the reconnect attempt limit.
func (b *ConnectionConfigBuilder) MaxReconnects(n int) *ConnectionConfigBuilder {
	b.maxReconnects = n
	b.maxReconnectsSet = true

	return b
}

// DrainAwaitSeconds sets the drain bound in whole seconds.
func (b *ConnectionConfigBuilder) DrainAwaitSeconds(n int) *ConnectionConfigBuilder {
	b.drainSeconds = n
	b.drainSet = true

	return b
}

// TraceConnection enables connection lifecycle tracing.
func (b *ConnectionConfigBuilder) TraceConnection(enabled bool) *ConnectionConfigBuilder {
	b.trace = enabled
	return b
}

// UseDispatcherWithExecutor enables the executor-backed dispatcher.
func (b *ConnectionConfigBuilder) UseDispatcherWithExecutor(enabled bool) *ConnectionConfigBuilder {
	b.useExecutor = enabled
	return b
}

// ExecutorPoolSize sets the worker count of the owned executor pool.
func (b *ConnectionConfigBuilder) ExecutorPoolSize(n int) *ConnectionConfigBuilder {
	b.poolSize = n
	return b
}

// ExecutorNamingPrefix sets the worker naming prefix of the owned executor pool.
func (b *ConnectionConfigBuilder) ExecutorNamingPrefix(prefix string) *ConnectionConfigBuilder {
	b.namingPrefix = prefix
	return b
}

// ExternalExecutor supplies an executor owned by the caller. It takes precedence
// over the pool size and naming prefix, and is never shut down by the Manager.
func (b *ConnectionConfigBuilder) ExternalExecutor(exec Executor) *ConnectionConfigBuilder {
	b.executor = exec
	return b
}

// Name sets the client connection name.
func (b *ConnectionConfigBuilder) Name(name string) *ConnectionConfigBuilder {
	b.name = name
	return b
}

// ConnectTimeout sets the dial timeout.
func (b *ConnectionConfigBuilder) ConnectTimeout(d time.Duration) *ConnectionConfigBuilder {
	b.connectTimeout = d
	return b
}

// Build validates the collected values and returns an immutable ConnectionConfig.
//
// Returns:
//   - ConnectionConfig: Valid configuration
//   - error: All violated rules joined together; each matches ErrConfiguration
func (b *ConnectionConfigBuilder) Build() (ConnectionConfig, error) {
	var errs []error

	urls := splitURLs(b.urls)
	if !b.urlsSet || len(urls) == 0 {
		errs = append(errs, newConfigError("urls", "at least one server URL is required"))
	}

	if !b.maxReconnectsSet {
		errs = append(errs, newConfigError("maxReconnects", "is required"))
	} else if b.maxReconnects < UnlimitedReconnects {
		errs = append(errs, newConfigError("maxReconnects", "must be %d (unlimited) or >= 0, got %d", UnlimitedReconnects, b.maxReconnects))
	}

	if !b.drainSet {
		errs = append(errs, newConfigError("drainAwaitSeconds", "is required"))
	} else if b.drainSeconds < 0 {
		errs = append(errs, newConfigError("drainAwaitSeconds", "must be >= 0, got %d", b.drainSeconds))
	}

	if b.poolSize < 0 {
		errs = append(errs, newConfigError("executor.poolSize", "must be >= 0, got %d", b.poolSize))
	}
	if b.useExecutor && b.executor == nil {
		if b.poolSize <= 0 {
			errs = append(errs, newConfigError("executor.poolSize", "must be > 0 when the executor-backed dispatcher is enabled without an external executor"))
		}
		if strings.TrimSpace(b.namingPrefix) == "" {
			errs = append(errs, newConfigError("executor.namingPrefix", "is required when the executor-backed dispatcher is enabled without an external executor"))
		}
	}

	if b.connectTimeout < 0 {
		errs = append(errs, newConfigError("connectTimeout", "must be >= 0, got %v", b.connectTimeout))
	}

	if len(errs) > 0 {
		return ConnectionConfig{}, errors.Join(errs...)
	}

	name := b.name
	if name == "" {
		name = DefaultNamePrefix + "-" + uuid.NewString()
	}

	timeout := b.connectTimeout
	if timeout == 0 {
		timeout = nats.DefaultTimeout
	}

	return ConnectionConfig{
		serverURLs:                urls,
		maxReconnects:             b.maxReconnects,
		traceConnection:           b.trace,
		drainAwait:                time.Duration(b.drainSeconds) * time.Second,
		useDispatcherWithExecutor: b.useExecutor,
		executorPoolSize:          b.poolSize,
		executorNamingPrefix:      strings.TrimSpace(b.namingPrefix),
		executor:                  b.executor,
		name:                      name,
		connectTimeout:            timeout,
	}, nil
}

// ConnectionConfigFromSettings validates Settings into a ConnectionConfig.
//
// Absent URLs, max reconnects or drain await are configuration errors.
//
// Parameters:
//   - s: Settings from LoadSettings or built in code
//   - exec: Optional external executor, may be nil
//
// Returns:
//   - ConnectionConfig: Valid configuration
//   - error: Joined configuration errors
func ConnectionConfigFromSettings(s Settings, exec Executor) (ConnectionConfig, error) {
	b := NewConnectionConfigBuilder().
		TraceConnection(s.TraceConnection).
		UseDispatcherWithExecutor(s.UseDispatcherWithExecutor).
		ExecutorPoolSize(s.Executor.PoolSize).
		ExecutorNamingPrefix(s.Executor.NamingPrefix).
		ExternalExecutor(exec).
		Name(s.Name).
		ConnectTimeout(s.ConnectTimeout)

	if s.URLs != "" {
		b.ServerURLs(s.URLs)
	}
	if s.MaxReconnects != nil {
		b.MaxReconnects(*s.MaxReconnects)
	}
	if s.DrainAwaitSeconds != nil {
		b.DrainAwaitSeconds(*s.DrainAwaitSeconds)
	}

	return b.Build()
}

// splitURLs flattens comma-separated entries, trimming blanks and keeping order.
func splitURLs(entries []string) []string {
	urls := make([]string, 0, len(entries))
	for _, entry := range entries {
		for part := range strings.SplitSeq(entry, ",") {
			if u := strings.TrimSpace(part); u != "" {
				urls = append(urls, u)
			}
		}
	}

	return urls
}
