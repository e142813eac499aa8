package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPool_Defaults(t *testing.T) {
	p, err := NewPool(Config{})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Shutdown(context.Background())) }()

	require.Equal(t, DefaultPoolSize, p.Size())
	require.Contains(t, p.WorkerName("orders.created"), DefaultNamingPrefix+"-")
}

func TestNewPool_InvalidConfig(t *testing.T) {
	_, err := NewPool(Config{PoolSize: -1})
	require.Error(t, err)

	_, err = NewPool(Config{QueueSize: -2})
	require.Error(t, err)
}

func TestPool_SameKeySameWorker(t *testing.T) {
	p, err := NewPool(Config{PoolSize: 8, NamingPrefix: "orders"})
	require.NoError(t, err)
	defer func() { require.NoError(t, p.Shutdown(context.Background())) }()

	for i := range 20 {
		key := fmt.Sprintf("orders.%d", i)
		require.Equal(t, p.WorkerName(key), p.WorkerName(key))
	}
}

func TestPool_PreservesOrderPerKey(t *testing.T) {
	p, err := NewPool(Config{PoolSize: 4, QueueSize: 16})
	require.NoError(t, err)

	var mu sync.Mutex
	got := make([]int, 0, 100)
	for i := range 100 {
		require.NoError(t, p.Execute("orders.created", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	require.NoError(t, p.Shutdown(context.Background()))
	require.Len(t, got, 100)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestPool_ExecuteAfterShutdown(t *testing.T) {
	p, err := NewPool(Config{PoolSize: 1})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))

	require.ErrorIs(t, p.Execute("k", func() {}), ErrPoolClosed)
}

func TestPool_PanicRecovered(t *testing.T) {
	var panics atomic.Int32
	p, err := NewPool(Config{
		PoolSize: 1,
		PanicHandler: func(worker string, recovered any) {
			require.Equal(t, "jetpush-dispatch-0", worker)
			panics.Add(1)
		},
	})
	require.NoError(t, err)

	var ran atomic.Bool
	require.NoError(t, p.Execute("k", func() { panic("boom") }))
	require.NoError(t, p.Execute("k", func() { ran.Store(true) }))
	require.NoError(t, p.Shutdown(context.Background()))

	require.Equal(t, int32(1), panics.Load())
	require.True(t, ran.Load())
}

func TestPool_ShutdownContextExpires(t *testing.T) {
	p, err := NewPool(Config{PoolSize: 1})
	require.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, p.Execute("k", func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}
