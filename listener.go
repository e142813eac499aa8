package jetpush

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/arloliu/jetpush/internal/natsutil"
	"github.com/nats-io/nats.go"
)

// Connection event names passed to Hooks.OnConnectionEvent and metrics.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventReconnected  = "reconnected"
	EventClosed       = "closed"
	EventDiscovered   = "discovered"
)

// connectionListener receives NATS client callbacks and forwards them to the
// logger, hooks and metrics.
//
// Callbacks run on the NATS client's callback goroutine and must not block.
type connectionListener struct {
	logger  Logger
	metrics MetricsCollector
	hooks   *Hooks
	trace   bool

	// drainTimedOut is set when the client reports nats.ErrDrainTimeout.
	drainTimedOut atomic.Bool

	// onUnexpectedClose is called when the client closes the connection on its own.
	onUnexpectedClose func()
}

func (l *connectionListener) register(opts *nats.Options) {
	opts.ConnectedCB = l.onConnected
	opts.DisconnectedErrCB = l.onDisconnected
	opts.ReconnectedCB = l.onReconnected
	opts.ClosedCB = l.onClosed
	opts.DiscoveredServersCB = l.onDiscoveredServers
	opts.AsyncErrorCB = l.onAsyncError
}

func (l *connectionListener) onConnected(nc *nats.Conn) {
	url := connectedURL(nc)
	l.logger.Info("nats connected", "url", url)
	l.event(EventConnected, url)
}

func (l *connectionListener) onDisconnected(nc *nats.Conn, err error) {
	url := connectedURL(nc)
	if err != nil {
		l.logger.Warn("nats disconnected", "url", url, "error", err, "connectivity", natsutil.IsConnectivityError(err))
	} else {
		l.logger.Info("nats disconnected", "url", url)
	}
	l.event(EventDisconnected, url)
}

func (l *connectionListener) onReconnected(nc *nats.Conn) {
	url := connectedURL(nc)
	l.logger.Info("nats reconnected", "url", url)
	if l.trace && nc != nil {
		l.logger.Debug("nats reconnect detail", "reconnects", nc.Stats().Reconnects, "servers", nc.Servers())
	}
	l.event(EventReconnected, url)
}

func (l *connectionListener) onClosed(nc *nats.Conn) {
	url := connectedURL(nc)
	l.logger.Info("nats connection closed", "url", url)
	l.event(EventClosed, url)
	if l.onUnexpectedClose != nil {
		l.onUnexpectedClose()
	}
}

func (l *connectionListener) onDiscoveredServers(nc *nats.Conn) {
	if l.trace && nc != nil {
		l.logger.Debug("nats discovered servers", "servers", nc.DiscoveredServers())
	}
	l.event(EventDiscovered, connectedURL(nc))
}

func (l *connectionListener) onAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if errors.Is(err, nats.ErrDrainTimeout) {
		l.drainTimedOut.Store(true)
	}

	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	l.logger.Error("nats async error", "subject", subject, "error", err)
	l.metrics.RecordAsyncError()

	if hookErr := l.hooks.OnError(context.Background(), err); hookErr != nil {
		l.logger.Error("error hook failed", "error", hookErr)
	}
}

func (l *connectionListener) event(name, url string) {
	if l.trace {
		l.logger.Debug("nats connection event", "event", name, "url", url)
	}
	l.metrics.RecordConnectionEvent(name)
	l.hooks.OnConnectionEvent(name, url)
}

func connectedURL(nc *nats.Conn) string {
	if nc == nil {
		return ""
	}

	return nc.ConnectedUrlRedacted()
}
