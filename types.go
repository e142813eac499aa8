package jetpush

import (
	"github.com/arloliu/jetpush/internal/executor"
	"github.com/arloliu/jetpush/types"
)

// Re-export types from the types package.
//
// Internal packages depend on `types` without importing the root package,
// while users get `jetpush.State`, `jetpush.Logger`, etc.
type (
	State          = types.State
	HandlerOptions = types.HandlerOptions
)

// Re-export interfaces from the types package for convenience.
type (
	HandlerAdapter   = types.HandlerAdapter
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Executor runs handler tasks. Tasks submitted with the same key (the message
// subject) should run in submission order.
type Executor = executor.Executor

// Re-export State constants from the types package.
const (
	StateDisconnected = types.StateDisconnected
	StateConnecting   = types.StateConnecting
	StateConnected    = types.StateConnected
	StateDraining     = types.StateDraining
	StateFailed       = types.StateFailed
)
