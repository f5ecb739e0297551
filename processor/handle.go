// Package processor builds and caches effect-bound video pipelines.
//
// A Handle is one pipeline for one effect. Factory constructs handles;
// Cache keeps one handle per effect so that reselecting an effect reuses
// its warm pipeline.
package processor

import (
	"context"

	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
)

// State is the lifecycle state of a Handle.
type State uint32

const (
	// StateReady indicates the handle is created and not processing
	StateReady State = iota
	// StateBound indicates the handle is processing a stream
	StateBound
	// StateStopping indicates a binding was ended and its processing
	// goroutine has not exited yet
	StateStopping
	// StateClosed indicates backend resources have been released
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateBound:
		return "bound"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handle is an effect-bound processing pipeline.
//
// Destroy and Close are distinct: Destroy ends the current binding and
// leaves the handle reusable once its processing has stopped, Close waits
// for processing to stop, releases the backend and is terminal.
type Handle interface {
	// Effect returns the effect this handle applies
	Effect() effect.ID
	// State returns the current lifecycle state
	State() State
	// Process starts transforming in and returns the output stream
	Process(ctx context.Context, in media.Stream) (media.Stream, error)
	// Destroy ends the current binding, if any
	Destroy(ctx context.Context) error
	// Close releases backend resources
	Close() error
}

// Factory constructs handles. It must not touch cache or binding state.
type Factory interface {
	Create(ctx context.Context, id effect.ID) (Handle, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, id effect.ID) (Handle, error)

// Create calls f(ctx, id).
func (f FactoryFunc) Create(ctx context.Context, id effect.ID) (Handle, error) {
	return f(ctx, id)
}
