// Package binder attaches the raw stream to at most one processor at a time.
package binder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/sirupsen/logrus"
)

// Sentinel errors for binding operations.
var (
	// ErrProcessing indicates a created processor failed to process the
	// stream. The binder never substitutes a fallback on its own.
	ErrProcessing = errors.New("processing failed")

	// ErrAlreadyBound indicates the handle is still bound to a stream.
	ErrAlreadyBound = errors.New("processor is already bound")
)

// Binding is the live association between the raw stream and the processor
// transforming it. Processor is nil when the raw stream is shown as is.
type Binding struct {
	Processor processor.Handle
	Output    media.Stream
}

// Binder tracks which handles are bound. It is safe for concurrent use.
type Binder struct {
	mu    sync.Mutex
	bound map[processor.Handle]string // handle -> output stream ID
}

// New creates a Binder with no bindings.
func New() *Binder {
	return &Binder{bound: make(map[processor.Handle]string)}
}

// Bind returns raw unchanged when h is nil, otherwise the output of
// h.Process(raw). Processing errors are returned wrapped in ErrProcessing.
func (b *Binder) Bind(ctx context.Context, raw media.Stream, h processor.Handle) (media.Stream, error) {
	if h == nil {
		return raw, nil
	}

	b.mu.Lock()
	if _, ok := b.bound[h]; ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyBound, h.Effect())
	}
	// Reserve the handle so a concurrent Bind cannot slip in.
	b.bound[h] = ""
	b.mu.Unlock()

	out, err := h.Process(ctx, raw)
	if err == nil && out == nil {
		err = errors.New("processor returned no output stream")
	}
	if err != nil {
		b.mu.Lock()
		delete(b.bound, h)
		b.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"function": "Binder.Bind",
			"effect":   h.Effect().String(),
			"input_id": raw.ID(),
			"error":    err.Error(),
		}).Debug("Processor failed to bind")
		return nil, fmt.Errorf("%w: %s: %w", ErrProcessing, h.Effect(), err)
	}

	b.mu.Lock()
	b.bound[h] = out.ID()
	b.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Binder.Bind",
		"effect":    h.Effect().String(),
		"input_id":  raw.ID(),
		"output_id": out.ID(),
	}).Debug("Stream bound")

	return out, nil
}

// Unbind destroys the binding of h. The mark is cleared even when Destroy
// fails; the failure is returned. Unbinding nil is a no-op.
func (b *Binder) Unbind(ctx context.Context, h processor.Handle) error {
	if h == nil {
		return nil
	}

	err := h.Destroy(ctx)

	b.mu.Lock()
	delete(b.bound, h)
	b.mu.Unlock()

	if err != nil {
		return fmt.Errorf("destroying %s binding: %w", h.Effect(), err)
	}
	return nil
}

// IsBound reports whether h currently holds a binding.
func (b *Binder) IsBound(h processor.Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.bound[h]
	return ok
}

// Reset forgets every binding without touching the handles.
func (b *Binder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = make(map[processor.Handle]string)
}
