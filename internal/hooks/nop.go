// Package hooks provides default Hooks implementations.
package hooks

import (
	"context"

	"github.com/arloliu/jetpush/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.State, types.State) error = (*NopHooks)(nil).OnStateChanged
	_ func(string, string)                                  = (*NopHooks)(nil).OnConnectionEvent
	_ func(context.Context, error) error                    = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnStateChanged:    h.OnStateChanged,
		OnConnectionEvent: h.OnConnectionEvent,
		OnError:           h.OnError,
	}
}

// WithDefaults returns a copy of hooks with every nil callback replaced by a no-op.
//
// Parameters:
//   - hooks: User supplied hooks, may be nil
//
// Returns:
//   - *types.Hooks: Hooks safe to call without nil checks
func WithDefaults(hooks *types.Hooks) *types.Hooks {
	out := NewNop()
	if hooks == nil {
		return &out
	}
	if hooks.OnStateChanged != nil {
		out.OnStateChanged = hooks.OnStateChanged
	}
	if hooks.OnConnectionEvent != nil {
		out.OnConnectionEvent = hooks.OnConnectionEvent
	}
	if hooks.OnError != nil {
		out.OnError = hooks.OnError
	}

	return &out
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(ctx context.Context, from, to types.State) error {
	return nil
}

// OnConnectionEvent is a no-op implementation.
func (h *NopHooks) OnConnectionEvent(event string, url string) {}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(ctx context.Context, err error) error {
	return nil
}
