package jetpush

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/arloliu/jetpush/internal/hooks"
	"github.com/arloliu/jetpush/internal/logging"
	"github.com/arloliu/jetpush/internal/metrics"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

type eventMetrics struct {
	metrics.NopMetrics

	mu          sync.Mutex
	events      []string
	asyncErrors int
}

func (m *eventMetrics) RecordConnectionEvent(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *eventMetrics) RecordAsyncError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asyncErrors++
}

func newTestListener(h *Hooks) (*connectionListener, *eventMetrics) {
	em := &eventMetrics{}

	return &connectionListener{
		logger:  logging.NewNop(),
		metrics: em,
		hooks:   hooks.WithDefaults(h),
		trace:   true,
	}, em
}

func TestConnectionListener_Register(t *testing.T) {
	l, _ := newTestListener(nil)
	opts := nats.GetDefaultOptions()
	l.register(&opts)

	require.NotNil(t, opts.ConnectedCB)
	require.NotNil(t, opts.DisconnectedErrCB)
	require.NotNil(t, opts.ReconnectedCB)
	require.NotNil(t, opts.ClosedCB)
	require.NotNil(t, opts.DiscoveredServersCB)
	require.NotNil(t, opts.AsyncErrorCB)
}

func TestConnectionListener_Events(t *testing.T) {
	var got []string
	l, em := newTestListener(&Hooks{OnConnectionEvent: func(event, url string) {
		got = append(got, event)
		require.Empty(t, url, "nil connection has no url")
	}})

	require.NotPanics(t, func() {
		l.onConnected(nil)
		l.onDisconnected(nil, nats.ErrConnectionClosed)
		l.onDisconnected(nil, nil)
		l.onReconnected(nil)
		l.onDiscoveredServers(nil)
		l.onClosed(nil)
	})

	want := []string{EventConnected, EventDisconnected, EventDisconnected, EventReconnected, EventDiscovered, EventClosed}
	require.Equal(t, want, got)
	require.Equal(t, want, em.events)
}

func TestConnectionListener_ClosedCallsUnexpectedClose(t *testing.T) {
	l, _ := newTestListener(nil)
	var calls int
	l.onUnexpectedClose = func() { calls++ }

	l.onClosed(nil)
	require.Equal(t, 1, calls)
}

func TestConnectionListener_AsyncError(t *testing.T) {
	var hookErrs []error
	l, em := newTestListener(&Hooks{OnError: func(_ context.Context, err error) error {
		hookErrs = append(hookErrs, err)
		return errors.New("hook failed")
	}})

	l.onAsyncError(nil, nil, nats.ErrSlowConsumer)
	require.False(t, l.drainTimedOut.Load())

	l.onAsyncError(nil, &nats.Subscription{Subject: "orders.created"}, nats.ErrDrainTimeout)
	require.True(t, l.drainTimedOut.Load())

	require.Equal(t, []error{nats.ErrSlowConsumer, nats.ErrDrainTimeout}, hookErrs)
	require.Equal(t, 2, em.asyncErrors)
}
