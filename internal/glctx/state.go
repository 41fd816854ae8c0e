// SPDX-License-Identifier: MPL-2.0

package glctx

const (
	// StateCreated indicates New returned and Start has not been called.
	StateCreated State = iota
	// StateStarting indicates Start is bringing the owning goroutine up.
	StateStarting
	// StateRunning indicates jobs are accepted.
	StateRunning
	// StateStopping indicates Stop is draining the queue.
	StateStopping
	// StateStopped is terminal.
	StateStopped
	// StateFailed is terminal: the thread could not start.
	StateFailed
)

// State is the lifecycle state of a Thread.
type State int32

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the state is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
