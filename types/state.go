package types

// State represents the connection lifecycle state of a Manager.
//
// States follow a defined progression:
//
//	StateDisconnected → StateConnecting → StateConnected → StateDraining → StateDisconnected
//
// StateFailed is reached from StateConnecting or StateDraining on an unrecoverable
// error. Transient reconnects are handled by the NATS client beneath StateConnected
// and are not modeled as a separate state.
type State int

const (
	// StateDisconnected is the initial state and the state after a completed drain.
	StateDisconnected State = iota

	// StateConnecting indicates the initial connection attempt is in progress.
	StateConnecting

	// StateConnected indicates the physical connection and JetStream context are usable.
	StateConnected

	// StateDraining indicates a graceful drain is in progress.
	StateDraining

	// StateFailed indicates connect or drain failed.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateDraining:
		return "Draining"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
