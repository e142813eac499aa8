package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.NotNil(t, nc)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(1*time.Second))
	require.True(t, ns.JetStreamEnabled())
}

// TestStartEmbeddedNATS_ParallelTests verifies parallel test execution.
func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	// Run multiple tests in parallel to verify no port conflicts
	for range 5 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateStreamAndPublish(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)

	stream := CreateStream(t, nc, "ORDERS", "orders.>")
	Publish(t, nc, "orders.created", []byte(`{"id":1}`), []byte(`{"id":2}`))

	info, err := stream.Info(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ORDERS", info.Config.Name)
	require.Equal(t, uint64(2), info.State.Msgs)
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)

	require.NotPanics(t, func() {
		logger.Debug("debug", "key", "value")
		logger.Info("info")
		logger.Warn("warn", "n", 1)
		logger.Error("error", "err", "boom")
	})
}
