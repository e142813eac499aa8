package types

import "context"

// Hooks defines optional callbacks for Manager lifecycle events.
//
// All hooks are optional. OnStateChanged runs in a background goroutine so it
// never blocks a state transition; OnConnectionEvent and OnError run on the NATS
// client's callback goroutine and must return quickly.
//
// Example:
//
//	hooks := &jetpush.Hooks{
//	    OnStateChanged: func(ctx context.Context, from, to jetpush.State) error {
//	        log.Printf("nats: %s -> %s", from, to)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called after every manager state transition.
	OnStateChanged func(ctx context.Context, from, to State) error

	// OnConnectionEvent is called for connected, disconnected, reconnected,
	// closed and discovered-servers events.
	OnConnectionEvent func(event string, url string)

	// OnError is called for asynchronous errors reported by the NATS client.
	OnError func(ctx context.Context, err error) error
}
