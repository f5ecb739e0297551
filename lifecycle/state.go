package lifecycle

import (
	"fmt"

	"github.com/opd-ai/fxswitch/effect"
)

// State is the manager lifecycle state.
type State uint32

const (
	// StateIdle is the state before Start.
	StateIdle State = iota
	// StateUnprocessed shows the raw stream.
	StateUnprocessed
	// StateProcessing shows the output of the active processor.
	StateProcessing
	// StateSwitching is held while an effect change is in progress.
	StateSwitching
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateUnprocessed:
		return "unprocessed"
	case StateProcessing:
		return "processing"
	case StateSwitching:
		return "switching"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", uint32(s))
	}
}

// Snapshot is a consistent view of the manager.
type Snapshot struct {
	State    State
	Effect   effect.ID
	OutputID string
	Cached   int
	Sequence uint64
}
