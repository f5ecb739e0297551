package processor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/fxswitch/av/video"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
)

// chanStream is a FrameStream fed by the test.
type chanStream struct {
	id     string
	frames chan *video.VideoFrame
}

func newChanStream(id string) *chanStream {
	return &chanStream{id: id, frames: make(chan *video.VideoFrame, 8)}
}

func (s *chanStream) ID() string {
	return s.id
}

func (s *chanStream) Tracks() []media.Track {
	return nil
}

func (s *chanStream) Frames() <-chan *video.VideoFrame {
	return s.frames
}

// plainStream carries no frames.
type plainStream struct{}

func (plainStream) ID() string {
	return "plain"
}

func (plainStream) Tracks() []media.Track {
	return nil
}

// stubHandle records lifecycle calls.
type stubHandle struct {
	id       effect.ID
	closes   atomic.Int32
	destroys atomic.Int32
}

func (h *stubHandle) Effect() effect.ID {
	return h.id
}

func (h *stubHandle) State() State {
	return StateReady
}

func (h *stubHandle) Process(ctx context.Context, in media.Stream) (media.Stream, error) {
	return in, nil
}

func (h *stubHandle) Destroy(ctx context.Context) error {
	h.destroys.Add(1)
	return nil
}

func (h *stubHandle) Close() error {
	h.closes.Add(1)
	return nil
}

// countingFactory creates stub handles, optionally blocking until released.
type countingFactory struct {
	mu      sync.Mutex
	calls   map[effect.ID]int
	gate    chan struct{}
	started chan effect.ID
	err     error
	made    []*stubHandle
}

func newCountingFactory() *countingFactory {
	return &countingFactory{calls: make(map[effect.ID]int), started: make(chan effect.ID, 16)}
}

func (f *countingFactory) Create(ctx context.Context, id effect.ID) (Handle, error) {
	f.mu.Lock()
	f.calls[id]++
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	f.started <- id
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	h := &stubHandle{id: id}
	f.mu.Lock()
	f.made = append(f.made, h)
	f.mu.Unlock()
	return h, nil
}

func (f *countingFactory) count(id effect.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// blockingEffect holds every Apply until release is closed and records how
// many calls overlap.
type blockingEffect struct {
	entered chan struct{}
	release chan struct{}

	active          atomic.Int32
	peak            atomic.Int32
	releases        atomic.Int32
	activeAtRelease atomic.Int32
}

func newBlockingEffect() *blockingEffect {
	return &blockingEffect{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *blockingEffect) Apply(frame *video.VideoFrame) (*video.VideoFrame, error) {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		p := e.peak.Load()
		if n <= p || e.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case e.entered <- struct{}{}:
	default:
	}
	<-e.release
	return frame, nil
}

func (e *blockingEffect) GetName() string {
	return "Blocking"
}

func (e *blockingEffect) Release() {
	e.activeAtRelease.Store(e.active.Load())
	e.releases.Add(1)
}
