package broker

import "sync/atomic"

// State is the connection state of a Manager.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// stateBox holds a State for lock-free reads from the publish path while the
// transport's callbacks move it.
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) load() State { return State(b.v.Load()) }

// swap stores s and returns the previous state.
func (b *stateBox) swap(s State) State { return State(b.v.Swap(int32(s))) }
