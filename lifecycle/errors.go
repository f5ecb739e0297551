package lifecycle

import "errors"

var (
	// ErrNotStarted indicates an operation that needs the raw stream was
	// called before Start succeeded.
	ErrNotStarted = errors.New("manager not started")

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.New("manager already started")

	// ErrClosed indicates the manager has been torn down.
	ErrClosed = errors.New("manager closed")

	// ErrSuperseded indicates a newer effect request replaced this one
	// before it completed.
	ErrSuperseded = errors.New("effect request superseded")
)
