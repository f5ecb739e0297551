package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/fxswitch/av/video"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
	"github.com/sirupsen/logrus"
)

// Pipeline is the Handle implementation backed by a video.FrameProcessor.
// While bound, a goroutine reads frames from the input stream, runs them
// through the frame processor and publishes them on the output stream.
type Pipeline struct {
	effect effect.ID
	frames *video.FrameProcessor
	buffer int

	mu      sync.Mutex
	state   State
	closing bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPipeline creates a ready pipeline for id. buffer is the output frame
// channel capacity.
func NewPipeline(id effect.ID, frames *video.FrameProcessor, buffer int) *Pipeline {
	return &Pipeline{
		effect: id,
		frames: frames,
		buffer: buffer,
		state:  StateReady,
	}
}

// Effect returns the effect this pipeline applies.
func (p *Pipeline) Effect() effect.ID {
	return p.effect
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Process binds the pipeline to in and returns the processed output. The
// binding outlives ctx; it ends with Destroy, Close, the input ending, or
// the output track being stopped. A previous binding that is still
// stopping is waited for until ctx ends.
func (p *Pipeline) Process(ctx context.Context, in media.Stream) (media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs, ok := in.(media.FrameStream)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStream, in.ID())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed || p.closing {
		return nil, ErrClosed
	}
	if err := p.awaitStoppedLocked(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	switch {
	case p.state == StateClosed || p.closing:
		return nil, ErrClosed
	case p.state == StateBound:
		return nil, ErrBusy
	}

	runCtx, cancel := context.WithCancel(context.Background())
	out := media.NewProcessedStream(in.ID(), p.buffer, cancel)
	done := make(chan struct{})

	p.state = StateBound
	p.cancel = cancel
	p.done = done

	go p.run(runCtx, fs, out, done)

	logrus.WithFields(logrus.Fields{
		"function":  "Pipeline.Process",
		"effect":    p.effect.String(),
		"input_id":  in.ID(),
		"output_id": out.ID(),
	}).Debug("Pipeline bound to stream")

	return out, nil
}

func (p *Pipeline) run(ctx context.Context, in media.FrameStream, out *media.ProcessedStream, done chan struct{}) {
	defer close(done)
	defer out.End()

	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-in.Frames():
			if !ok {
				return
			}
			processed, err := p.frames.ProcessFrame(frame)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Pipeline.run",
					"effect":   p.effect.String(),
					"sequence": frame.Sequence,
					"error":    err.Error(),
				}).Warn("Dropping frame that failed processing")
				continue
			}
			if !out.Send(ctx, processed) {
				return
			}
		}
	}
}

// Destroy ends the current binding and waits for the processing goroutine
// to exit. The pipeline becomes ready for another Process call only once
// the goroutine is gone; if ctx ends first the pipeline stays stopping.
// Destroying an unbound pipeline is a no-op.
func (p *Pipeline) Destroy(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateBound {
		p.unbindLocked()
	}
	if err := p.awaitStoppedLocked(ctx); err != nil {
		return fmt.Errorf("waiting for %s pipeline to stop: %w", p.effect, err)
	}
	return nil
}

// unbindLocked cancels the running binding. The pipeline stays stopping
// until awaitStoppedLocked observes the goroutine exit.
func (p *Pipeline) unbindLocked() {
	p.cancel()
	p.cancel = nil
	p.state = StateStopping
}

// awaitStoppedLocked waits, with p.mu released, for a stopping binding to
// exit and then marks the pipeline ready. It is called and returns with
// p.mu held.
func (p *Pipeline) awaitStoppedLocked(ctx context.Context) error {
	for p.state == StateStopping {
		done := p.done
		p.mu.Unlock()

		var err error
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		p.mu.Lock()
		if err != nil {
			return err
		}
		if p.state == StateStopping && p.done == done {
			p.done = nil
			p.state = StateReady
		}
	}
	return nil
}

// Close stops any binding, waits for its goroutine to exit and releases the
// frame processor. Closing twice is a no-op.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed || p.closing {
		return nil
	}
	p.closing = true

	for p.state != StateReady {
		if p.state == StateBound {
			p.unbindLocked()
		}
		// Background never ends, so this only returns once stopped.
		_ = p.awaitStoppedLocked(context.Background())
	}

	processed, failed := p.frames.Stats()
	p.frames.Release()
	p.state = StateClosed

	logrus.WithFields(logrus.Fields{
		"function":         "Pipeline.Close",
		"effect":           p.effect.String(),
		"frames_processed": processed,
		"frames_failed":    failed,
	}).Debug("Pipeline closed")

	return nil
}
