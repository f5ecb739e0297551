package processor

import "errors"

// Creation errors.
var (
	// ErrCreation indicates the backend failed to build a pipeline for an
	// effect. Factory errors are always wrapped with it.
	ErrCreation = errors.New("processor creation failed")

	// ErrUnsupportedEffect indicates no builder is registered for the effect.
	ErrUnsupportedEffect = errors.New("unsupported effect")
)

// Handle errors.
var (
	// ErrClosed indicates the handle has been closed and cannot process.
	ErrClosed = errors.New("processor is closed")

	// ErrBusy indicates the handle is still bound to another stream.
	ErrBusy = errors.New("processor is already processing a stream")

	// ErrUnsupportedStream indicates the input stream does not carry frames.
	ErrUnsupportedStream = errors.New("stream does not carry video frames")
)

// Cache errors.
var (
	// ErrCacheClosed indicates the cache has been evicted and sealed.
	ErrCacheClosed = errors.New("processor cache is closed")
)
