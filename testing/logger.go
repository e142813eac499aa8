package testing

import (
	"sync"
	"testing"

	"github.com/arloliu/jetpush/types"
)

// NewTestLogger creates a new logger instance that writes to the testing.T logger.
//
// Messages logged after the test completes are dropped, so NATS client callbacks
// that fire during cleanup do not panic.
func NewTestLogger(t *testing.T) types.Logger {
	l := &testLogger{t: t}
	t.Cleanup(func() {
		l.mu.Lock()
		l.done = true
		l.mu.Unlock()
	})

	return l
}

type testLogger struct {
	t *testing.T

	mu   sync.Mutex
	done bool
}

var _ types.Logger = (*testLogger)(nil)

func (l *testLogger) logf(level, msg string, keysAndValues []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	l.t.Logf("%s: %s %v", level, msg, keysAndValues)
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.logf("DEBUG", msg, keysAndValues)
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.logf("INFO", msg, keysAndValues)
}

func (l *testLogger) Warn(msg string, keysAndValues ...any) {
	l.logf("WARN", msg, keysAndValues)
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.logf("ERROR", msg, keysAndValues)
}

func (l *testLogger) Fatal(msg string, keysAndValues ...any) {
	l.t.Fatalf("FATAL: %s %v", msg, keysAndValues)
}
