package jetpush

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jetpushtest "github.com/arloliu/jetpush/testing"
	"github.com/stretchr/testify/require"
)

func newIntegrationManager(t *testing.T, url string, b func(*ConnectionConfigBuilder)) *Manager {
	t.Helper()

	builder := NewConnectionConfigBuilder().
		ServerURLs(url).
		MaxReconnects(2).
		DrainAwaitSeconds(5)
	if b != nil {
		b(builder)
	}
	cfg, err := builder.Build()
	require.NoError(t, err)

	mgr, err := NewManager(cfg, WithLogger(jetpushtest.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, mgr.Connect(t.Context()))
	t.Cleanup(func() { _ = mgr.Disconnect(context.Background()) })

	return mgr
}

func TestIntegration_QueueGroupSharesMessages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ns, nc := jetpushtest.StartEmbeddedNATS(t)
	jetpushtest.CreateStream(t, nc, "ORDERS", "orders.>")

	var (
		mu   sync.Mutex
		seen = map[int]int{}
		per  [2]atomic.Int32
	)
	newOrders := func(idx int) HandlerAdapter {
		return NewHandler("orders-sub", []string{"orders.created"}, DecodeJSON[orderCreated],
			func(_ context.Context, ev orderCreated) error {
				mu.Lock()
				seen[ev.ID]++
				mu.Unlock()
				per[idx].Add(1)

				return nil
			},
			HandlerOptions{DeliverGroup: "orders-workers"},
		)
	}

	managers := []*Manager{
		newIntegrationManager(t, ns.ClientURL(), nil),
		newIntegrationManager(t, ns.ClientURL(), nil),
	}
	for i, mgr := range managers {
		require.NoError(t, mgr.RegisterHandlers(t.Context(), newOrders(i)))
		stream, ok := mgr.Registrar().Stream("orders-sub")
		require.True(t, ok)
		require.Equal(t, "ORDERS", stream)
	}

	const total = 50
	payloads := make([][]byte, 0, total)
	for i := range total {
		data, err := json.Marshal(orderCreated{ID: i, Amount: fmt.Sprintf("%d.00", i)})
		require.NoError(t, err)
		payloads = append(payloads, data)
	}
	jetpushtest.Publish(t, nc, "orders.created", payloads...)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(seen) == total
	}, 10*time.Second, 20*time.Millisecond)

	require.Equal(t, int32(total), per[0].Load()+per[1].Load(), "each message handled once across the group")

	for _, mgr := range managers {
		require.NoError(t, mgr.Disconnect(t.Context()))
		require.Equal(t, StateDisconnected, mgr.State())
		require.Equal(t, 0, mgr.Registrar().Len())
		require.Nil(t, mgr.Conn())

		// Second call is a no-op.
		require.NoError(t, mgr.Disconnect(t.Context()))
	}
}

func TestIntegration_ExecutorDispatchAndTerm(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ns, nc := jetpushtest.StartEmbeddedNATS(t)
	jetpushtest.CreateStream(t, nc, "PAYMENTS", "payments.>")

	mgr := newIntegrationManager(t, ns.ClientURL(), func(b *ConnectionConfigBuilder) {
		b.UseDispatcherWithExecutor(true).ExecutorPoolSize(2).ExecutorNamingPrefix("payments-dispatch").TraceConnection(true)
	})

	var handled atomic.Int32
	h := NewHandler("payments-sub", []string{"payments.settled"}, DecodeJSON[orderCreated],
		func(context.Context, orderCreated) error {
			handled.Add(1)
			return nil
		},
		HandlerOptions{MaxDeliver: 2},
	)
	require.NoError(t, mgr.RegisterHandler(t.Context(), h))
	require.ErrorIs(t, mgr.RegisterHandler(t.Context(), h), ErrDuplicateConsumer)

	jetpushtest.Publish(t, nc, "payments.settled",
		[]byte(`{"id":1,"amount":"10.00"}`),
		[]byte(`not json`),
		[]byte(`{"id":2,"amount":"20.00"}`),
	)

	require.Eventually(t, func() bool { return handled.Load() == 2 }, 5*time.Second, 20*time.Millisecond)

	js := mgr.JetStream()
	require.NotNil(t, js)
	require.Eventually(t, func() bool {
		info, err := js.ConsumerInfo("PAYMENTS", "payments-sub")
		return err == nil && info.NumAckPending == 0 && info.NumPending == 0
	}, 5*time.Second, 50*time.Millisecond, "the undecodable message is terminated, not redelivered")

	require.NoError(t, mgr.Disconnect(t.Context()))
	require.Equal(t, StateDisconnected, mgr.State())
}

func TestIntegration_DrainAcksQueuedExecutorTasks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ns, nc := jetpushtest.StartEmbeddedNATS(t)
	stream := jetpushtest.CreateStream(t, nc, "SHIPMENTS", "shipments.>")

	mgr := newIntegrationManager(t, ns.ClientURL(), func(b *ConnectionConfigBuilder) {
		b.UseDispatcherWithExecutor(true).ExecutorPoolSize(1).ExecutorNamingPrefix("shipments-dispatch")
	})

	var handled atomic.Int32
	h := NewHandler("shipments-sub", []string{"shipments.dispatched"}, DecodeString,
		func(context.Context, string) error {
			time.Sleep(50 * time.Millisecond)
			handled.Add(1)

			return nil
		},
		HandlerOptions{},
	)
	require.NoError(t, mgr.RegisterHandler(t.Context(), h))

	const total = 10
	payloads := make([][]byte, 0, total)
	for i := range total {
		payloads = append(payloads, fmt.Appendf(nil, "shipment-%d", i))
	}
	jetpushtest.Publish(t, nc, "shipments.dispatched", payloads...)

	require.Eventually(t, func() bool { return handled.Load() >= 1 }, 5*time.Second, 5*time.Millisecond)
	require.NoError(t, mgr.Disconnect(t.Context()))
	require.Equal(t, int32(total), handled.Load(), "queued tasks finish before the connection closes")

	consumer, err := stream.Consumer(t.Context(), "shipments-sub")
	require.NoError(t, err)
	info, err := consumer.Info(t.Context())
	require.NoError(t, err)
	require.Zero(t, info.NumAckPending, "every handled message was acked")
	require.Equal(t, uint64(total), info.AckFloor.Consumer)
}
