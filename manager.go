package jetpush

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/jetpush/internal/executor"
	"github.com/arloliu/jetpush/internal/hooks"
	"github.com/arloliu/jetpush/internal/logging"
	"github.com/arloliu/jetpush/internal/metrics"
	"github.com/nats-io/nats.go"
)

const (
	// drainPollInterval is how often Disconnect checks whether the drain finished.
	drainPollInterval = 20 * time.Millisecond

	// drainGrace is added to the drain-await bound so the client's own drain
	// timeout fires first and is reported with its cause.
	drainGrace = time.Second

	// drainSettleTicks is how many consecutive polls must see the subscriptions
	// drained with nothing in flight. The client decrements its pending count
	// just before invoking a callback.
	drainSettleTicks = 2
)

// brokerConn is the connection surface the Manager needs. *nats.Conn satisfies it.
type brokerConn interface {
	Status() nats.Status
	Drain() error
	Close()
	IsClosed() bool
	ConnectedUrl() string
	JetStream(opts ...nats.JSOpt) (nats.JetStreamContext, error)
}

// dialFunc opens a connection from fully built client options.
type dialFunc func(opts nats.Options) (brokerConn, error)

func dialNATS(opts nats.Options) (brokerConn, error) {
	nc, err := opts.Connect()
	if err != nil {
		return nil, err
	}

	return nc, nil
}

// Manager owns one NATS connection and the push consumers registered on it.
//
// Manager handles:
//   - Building client options from ConnectionConfig (servers in configured order)
//   - Connecting and materializing a JetStream context
//   - Registering durable, queue-grouped push consumers through its Registrar
//   - Draining, closing every consumer, then closing the connection
//
// Thread Safety:
//   - Connect and Disconnect must be serialized by the caller
//   - Accessors and registration methods are safe for concurrent use
//
// Lifecycle:
//   - Create with NewManager()
//   - Call Connect() once, then register handlers
//   - Call Disconnect() on shutdown; a second call is a no-op
type Manager struct {
	cfg       ConnectionConfig
	logger    Logger
	metrics   MetricsCollector
	hooks     *Hooks
	dial      dialFunc
	listener  *connectionListener
	registrar *Registrar

	state atomic.Int32 // State

	mu   sync.RWMutex
	conn brokerConn
	js   nats.JetStreamContext
	pool *executor.Pool // owned executor, nil when external or disabled
}

// NewManager creates a Manager for a validated configuration. It does not connect.
//
// Parameters:
//   - cfg: Configuration from ConnectionConfigBuilder.Build or ConnectionConfigFromSettings
//   - opts: Optional logger, metrics and hooks
//
// Returns:
//   - *Manager: Manager in StateDisconnected
//   - error: ErrConfiguration if cfg was not built by this package
//
// Example:
//
//	cfg, err := jetpush.ConnectionConfigFromSettings(settings, nil)
//	if err != nil {
//	    return err
//	}
//	mgr, err := jetpush.NewManager(cfg, jetpush.WithLogger(logger))
func NewManager(cfg ConnectionConfig, opts ...Option) (*Manager, error) {
	if len(cfg.serverURLs) == 0 {
		return nil, fmt.Errorf("%w: connection config must be built with ConnectionConfigBuilder", ErrConfiguration)
	}

	options := &managerOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	dial := options.dial
	if dial == nil {
		dial = dialNATS
	}

	m := &Manager{
		cfg:       cfg,
		logger:    loggerInstance,
		metrics:   metricsCollector,
		hooks:     hooks.WithDefaults(options.hooks),
		dial:      dial,
		registrar: newRegistrar(loggerInstance, metricsCollector),
	}
	m.listener = &connectionListener{
		logger:            m.logger,
		metrics:           m.metrics,
		hooks:             m.hooks,
		trace:             cfg.TraceConnection(),
		onUnexpectedClose: m.handleUnexpectedClose,
	}
	m.state.Store(int32(StateDisconnected))

	return m, nil
}

// Connect opens the connection and the JetStream context.
//
// The initial attempt is not retried; reconnects after a successful connect are
// handled by the client according to MaxReconnects.
//
// Parameters:
//   - ctx: Cancels the wait for the initial dial
//
// Returns:
//   - error: ErrAlreadyConnected, or an *OperationalError wrapping ErrConnectFailed
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.State()
	if from != StateDisconnected && from != StateFailed {
		return ErrAlreadyConnected
	}

	// A connection left behind by a failed drain is discarded first.
	if err := m.releaseLocked(ctx); err != nil {
		m.logger.Warn("previous connection release incomplete", "error", err)
	}
	m.transitionState(from, StateConnecting)

	exec, pool, err := m.resolveExecutor()
	if err != nil {
		return m.failConnect(err)
	}

	opts := m.buildOptions()
	if m.cfg.TraceConnection() {
		m.logger.Debug("nats client options",
			"servers", opts.Servers,
			"name", opts.Name,
			"max_reconnect", opts.MaxReconnect,
			"timeout", opts.Timeout,
			"drain_timeout", opts.DrainTimeout,
		)
	}

	conn, err := m.dialContext(ctx, opts)
	if err != nil {
		m.shutdownPool(ctx, pool)
		return m.failConnect(err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		m.shutdownPool(ctx, pool)

		return m.failConnect(fmt.Errorf("jetstream context: %w", err))
	}

	m.conn = conn
	m.js = js
	m.pool = pool
	m.listener.drainTimedOut.Store(false)
	m.registrar.bind(jsConsumerAPI{js: js}, exec)
	m.transitionState(StateConnecting, StateConnected)
	m.logger.Info("connected", "url", conn.ConnectedUrl(), "name", m.cfg.Name())

	return nil
}

func (m *Manager) failConnect(cause error) error {
	err := newOperationalError("connect", "", ErrConnectFailed, cause)
	m.logger.Error("connect failed", "servers", m.cfg.ServerURLs(), "error", cause)
	m.transitionState(StateConnecting, StateFailed)

	return err
}

// dialContext runs the blocking dial in a goroutine so ctx can interrupt the wait.
func (m *Manager) dialContext(ctx context.Context, opts nats.Options) (brokerConn, error) {
	type result struct {
		conn brokerConn
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		conn, err := m.dial(opts)
		ch <- result{conn: conn, err: err}
	}()

	select {
	case r := <-ch:
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.conn != nil {
				r.conn.Close()
			}
		}()

		return nil, fmt.Errorf("interrupted: %w", ctx.Err())
	}
}

// resolveExecutor returns the executor handlers run on and the pool the Manager
// owns, if any.
func (m *Manager) resolveExecutor() (Executor, *executor.Pool, error) {
	if !m.cfg.UseDispatcherWithExecutor() {
		return nil, nil, nil
	}
	if exec := m.cfg.Executor(); exec != nil {
		return exec, nil, nil
	}

	pool, err := executor.NewPool(executor.Config{
		PoolSize:     m.cfg.ExecutorPoolSize(),
		NamingPrefix: m.cfg.ExecutorNamingPrefix(),
		PanicHandler: func(worker string, recovered any) {
			m.logger.Error("handler panic", "worker", worker, "panic", recovered)
		},
	})
	if err != nil {
		return nil, nil, err
	}

	return pool, pool, nil
}

func (m *Manager) shutdownPool(ctx context.Context, pool *executor.Pool) {
	if pool == nil {
		return
	}
	if err := pool.Shutdown(ctx); err != nil {
		m.logger.Warn("executor shutdown incomplete", "error", err)
	}
}

// buildOptions derives client options from the configuration.
func (m *Manager) buildOptions() nats.Options {
	opts := nats.GetDefaultOptions()
	opts.Servers = m.cfg.ServerURLs()
	opts.NoRandomize = true
	opts.MaxReconnect = m.cfg.MaxReconnects()
	opts.Name = m.cfg.Name()
	opts.Timeout = m.cfg.ConnectTimeout()
	if d := m.cfg.DrainAwait(); d > 0 {
		opts.DrainTimeout = d
	}
	m.listener.register(&opts)

	return opts
}

// Disconnect drains the registered consumers, waits until every delivered
// message has been handled and settled, drains the connection, then closes it.
//
// It is a no-op when never connected, after a completed Disconnect, or when the
// connection is not in the connected status (a warning is logged). With a zero
// drain-await the connection is closed without draining. After a failed drain
// the connection is closed and the manager stays in StateFailed.
//
// Parameters:
//   - ctx: Interrupts the drain wait; an interrupted drain is a failure
//
// Returns:
//   - error: *OperationalError wrapping ErrDrainTimeout or ErrDrainFailed
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn == nil {
		return nil
	}
	if m.State() == StateFailed {
		// Left behind by a failed drain: close without another drain attempt.
		return m.releaseLocked(ctx)
	}
	if status := m.conn.Status(); status != nats.CONNECTED {
		m.logger.Warn("disconnect skipped: not in connected status", "status", status.String())
		return nil
	}

	if !m.transitionState(StateConnected, StateDraining) {
		// The client gave up on the connection concurrently.
		return m.releaseLocked(ctx)
	}

	start := time.Now()
	if err := m.drain(ctx); err != nil {
		m.metrics.RecordDrain(time.Since(start).Seconds(), false)
		m.logger.Error("drain failed", "drain_await", m.cfg.DrainAwait(), "error", err)
		m.transitionState(StateDraining, StateFailed)

		return err
	}
	m.metrics.RecordDrain(time.Since(start).Seconds(), true)

	closeErr := m.releaseLocked(ctx)
	m.transitionState(StateDraining, StateDisconnected)
	m.logger.Info("disconnected", "drain_duration", time.Since(start))

	return closeErr
}

// drain drains the registered subscriptions, waits until every delivered
// message was processed, then drains the connection and waits until the
// client closes it. Both phases share the drain-await bound.
func (m *Manager) drain(ctx context.Context) error {
	await := m.cfg.DrainAwait()
	if await == 0 {
		return nil
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	deadline := time.NewTimer(await + drainGrace)
	defer deadline.Stop()

	// Handlers queued on the executor must ack while the connection is open.
	if err := m.registrar.drainSubscriptions(); err != nil {
		return newOperationalError("drain", "", ErrDrainFailed, err)
	}
	if err := waitDrain(ctx, ticker.C, deadline.C, drainSettleTicks, m.registrar.settled); err != nil {
		return err
	}

	m.listener.drainTimedOut.Store(false)
	if err := m.conn.Drain(); err != nil {
		return newOperationalError("drain", "", ErrDrainFailed, err)
	}
	if err := waitDrain(ctx, ticker.C, deadline.C, 1, m.conn.IsClosed); err != nil {
		return err
	}
	if m.listener.drainTimedOut.Load() {
		return newOperationalError("drain", "", ErrDrainTimeout, nats.ErrDrainTimeout)
	}

	return nil
}

// waitDrain polls done on every tick until it holds for ticks consecutive polls.
func waitDrain(ctx context.Context, tick, deadline <-chan time.Time, ticks int, done func() bool) error {
	hits := 0
	for {
		select {
		case <-tick:
			if !done() {
				hits = 0
				continue
			}
			hits++
			if hits >= ticks {
				return nil
			}
		case <-deadline:
			return newOperationalError("drain", "", ErrDrainTimeout, nil)
		case <-ctx.Done():
			return newOperationalError("drain", "", ErrDrainFailed, fmt.Errorf("interrupted: %w", ctx.Err()))
		}
	}
}

// releaseLocked closes consumers, the connection and the owned executor, and
// clears the references. Caller holds m.mu.
func (m *Manager) releaseLocked(ctx context.Context) error {
	if m.conn == nil {
		return nil
	}

	// Unbind first so a registration still in flight cannot commit afterwards.
	m.registrar.bind(nil, nil)

	var errs []error
	if err := m.registrar.CloseAll(); err != nil {
		errs = append(errs, err)
	}

	if !m.conn.IsClosed() {
		m.conn.Close()
	}
	m.shutdownPool(ctx, m.pool)

	m.conn = nil
	m.js = nil
	m.pool = nil

	return errors.Join(errs...)
}

// handleUnexpectedClose marks the manager failed when the client gives up on
// the connection, e.g. after exhausting reconnect attempts.
func (m *Manager) handleUnexpectedClose() {
	if m.transitionState(StateConnected, StateFailed) {
		m.logger.Error("connection closed by client while connected")
	}
}

// RegisterPushConsumer registers a push consumer on the current connection.
//
// See Registrar.RegisterPushConsumer.
func (m *Manager) RegisterPushConsumer(ctx context.Context, spec ConsumerSpec, push *PushSubscriberSpec, handler HandlerAdapter) error {
	return m.registrar.RegisterPushConsumer(ctx, spec, push, handler)
}

// RegisterHandler registers handler with the consumer metadata it declares,
// applying defaults for unspecified options.
//
// Parameters:
//   - ctx: Values are propagated to handler invocations
//   - handler: Handler to register
//
// Returns:
//   - error: Same errors as Registrar.RegisterPushConsumer
func (m *Manager) RegisterHandler(ctx context.Context, handler HandlerAdapter) error {
	if handler == nil {
		return ErrHandlerRequired
	}

	spec, push, err := specsFromHandler(handler)
	if err != nil {
		return err
	}

	return m.registrar.RegisterPushConsumer(ctx, spec, push, handler)
}

// RegisterHandlers registers handlers concurrently.
//
// Each registration is independent: a failure leaves the other handlers registered.
//
// Returns:
//   - error: All registration failures joined, nil if every handler registered
func (m *Manager) RegisterHandlers(ctx context.Context, handlers ...HandlerAdapter) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, h := range handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.RegisterHandler(ctx, h); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Registrar returns the consumer registrar owned by this manager.
func (m *Manager) Registrar() *Registrar {
	return m.registrar
}

// Config returns the connection configuration.
func (m *Manager) Config() ConnectionConfig {
	return m.cfg
}

// Conn returns the underlying NATS connection, or nil when not connected.
func (m *Manager) Conn() *nats.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	nc, _ := m.conn.(*nats.Conn)

	return nc
}

// JetStream returns the JetStream context, or nil when not connected.
func (m *Manager) JetStream() nats.JetStreamContext {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.js
}

// State returns the current connection state.
//
// Returns:
//   - State: Current state
func (m *Manager) State() State {
	return State(m.state.Load())
}

// WaitState waits for the manager to reach the expected state within the timeout period.
//
// The method returns a read-only channel that will receive exactly one value:
//   - nil if the expected state is reached within the timeout
//   - context.DeadlineExceeded if the timeout expires before reaching the state
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result (nil on success, error on timeout)
//
// Example:
//
//	if err := <-mgr.WaitState(jetpush.StateConnected, 5*time.Second); err != nil {
//	    return fmt.Errorf("not connected: %w", err)
//	}
func (m *Manager) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1) // Buffered to prevent goroutine leak

	go func() {
		defer close(ch)

		if m.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if m.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// transitionState moves from -> to and triggers hooks. It reports false when
// the transition is invalid or the current state is no longer from.
func (m *Manager) transitionState(from, to State) bool {
	if !isValidTransition(from, to) {
		m.logger.Error("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
		)

		return false
	}

	if !m.state.CompareAndSwap(int32(from), int32(to)) { //nolint:gosec // State values are controlled enum
		m.logger.Debug("state transition skipped",
			"from", from.String(),
			"to", to.String(),
			"current", m.State().String(),
		)

		return false
	}

	m.logger.Info("state transition",
		"from", from.String(),
		"to", to.String(),
	)

	// Run hook in background to avoid blocking the state machine
	go func() {
		if err := m.hooks.OnStateChanged(context.Background(), from, to); err != nil {
			m.logger.Error("state change hook error", "from", from, "to", to, "error", err)
		}
	}()

	m.metrics.RecordStateTransition(from, to)

	return true
}

// validTransitions lists the allowed state transitions.
var validTransitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateFailed},
	StateConnected:    {StateDraining, StateFailed},
	StateDraining:     {StateDisconnected, StateFailed},
	StateFailed:       {StateConnecting},
}

// isValidTransition validates that a state transition is allowed.
//
// Returns:
//   - bool: true if transition is valid, false otherwise
func isValidTransition(from, to State) bool {
	allowedStates, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return true
		}
	}

	return false
}
