package jetpush

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestManager_WaitState_AlreadyInState(t *testing.T) {
	m := &Manager{}
	m.state.Store(int32(StateConnected))

	start := time.Now()
	err := <-m.WaitState(StateConnected, 5*time.Second)

	require.NoError(t, err)
	require.Less(t, time.Since(start), 100*time.Millisecond, "should return immediately when already in state")
}

func TestManager_WaitState_AfterConnect(t *testing.T) {
	d := &dialRecorder{conn: newFakeConn(), block: make(chan struct{})}
	mgr, _ := newTestManager(t, validBuilder(), d)

	errCh := mgr.WaitState(StateConnected, 2*time.Second)

	done := make(chan error, 1)
	go func() { done <- mgr.Connect(context.Background()) }()

	require.Eventually(t, func() bool { return mgr.State() == StateConnecting }, time.Second, 5*time.Millisecond)
	close(d.block)

	require.NoError(t, <-errCh)
	require.NoError(t, <-done)
}

func TestManager_WaitState_Timeout(t *testing.T) {
	m := &Manager{}
	m.state.Store(int32(StateDisconnected))

	start := time.Now()
	err := <-m.WaitState(StateConnected, 300*time.Millisecond)

	elapsed := time.Since(start)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestManager_WaitState_MultipleWaiters(t *testing.T) {
	m := &Manager{}
	m.state.Store(int32(StateDraining))

	const waiters = 5
	results := make(chan error, waiters)
	for range waiters {
		go func() { results <- <-m.WaitState(StateDisconnected, 2*time.Second) }()
	}

	time.Sleep(100 * time.Millisecond)
	m.state.Store(int32(StateDisconnected))

	for i := range waiters {
		require.NoError(t, <-results, "waiter %d", i)
	}
}

func TestManager_WaitState_ChannelClosedAfterResult(t *testing.T) {
	m := &Manager{}
	m.state.Store(int32(StateFailed))

	errCh := m.WaitState(StateFailed, time.Second)
	require.NoError(t, <-errCh)

	err, ok := <-errCh
	require.False(t, ok, "channel is closed after the result")
	require.Nil(t, err)
}
