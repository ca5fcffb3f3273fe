package stash

// State represents the current state of a Binding.
type State int32

const (
	// StateLoading indicates the binding is attached but has not completed
	// a read yet.
	StateLoading State = iota

	// StateHealthy indicates the binding's value agrees with the store.
	StateHealthy

	// StateDegraded indicates the last read or write failed. The previously
	// observed value remains active.
	StateDegraded

	// StateEmpty indicates the initial read failed and no value has ever been
	// observed. The binding stays subscribed and recovers on the next change.
	StateEmpty

	// StateClosed indicates the binding has been detached for good.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateEmpty:
		return "empty"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
