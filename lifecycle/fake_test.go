package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/fxswitch/av/video"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/processor"
)

type fakeStream struct {
	id     string
	tracks []media.Track
}

func (s *fakeStream) ID() string {
	return s.id
}

func (s *fakeStream) Tracks() []media.Track {
	return s.tracks
}

// newRawStream returns a stream of n tracks whose stops are counted.
func newRawStream(n int, stops *atomic.Int32, stopErr error) *fakeStream {
	s := &fakeStream{id: "raw"}
	for i := 0; i < n; i++ {
		s.tracks = append(s.tracks, media.NewVideoTrack(func() error {
			stops.Add(1)
			return stopErr
		}))
	}
	return s
}

// frameStream is a raw stream that also carries test-fed frames.
type frameStream struct {
	fakeStream
	frames chan *video.VideoFrame
}

func newFrameStream(stops *atomic.Int32) *frameStream {
	return &frameStream{
		fakeStream: *newRawStream(1, stops, nil),
		frames:     make(chan *video.VideoFrame, 8),
	}
}

func (s *frameStream) Frames() <-chan *video.VideoFrame {
	return s.frames
}

// gateEffect holds every Apply until release is closed and records how many
// calls overlap and whether it was released mid-Apply.
type gateEffect struct {
	entered chan struct{}
	release chan struct{}

	active          atomic.Int32
	peak            atomic.Int32
	releases        atomic.Int32
	activeAtRelease atomic.Int32
}

func newGateEffect() *gateEffect {
	return &gateEffect{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (e *gateEffect) Apply(frame *video.VideoFrame) (*video.VideoFrame, error) {
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

func (e *gateEffect) GetName() string {
	return "Gate"
}

func (e *gateEffect) Release() {
	e.activeAtRelease.Store(e.active.Load())
	e.releases.Add(1)
}

// fakeHandle records lifecycle calls. When gate is set, Process blocks
// until it is closed regardless of ctx.
type fakeHandle struct {
	id         effect.ID
	processErr error
	closeErr   error
	gate       chan struct{}

	processes atomic.Int32
	destroys  atomic.Int32
	closes    atomic.Int32
}

func (h *fakeHandle) Effect() effect.ID {
	return h.id
}

func (h *fakeHandle) State() processor.State {
	return processor.StateReady
}

func (h *fakeHandle) Process(ctx context.Context, in media.Stream) (media.Stream, error) {
	h.processes.Add(1)
	if h.gate != nil {
		<-h.gate
	}
	if h.processErr != nil {
		return nil, h.processErr
	}
	return &fakeStream{id: "out-" + h.id.String()}, nil
}

func (h *fakeHandle) Destroy(ctx context.Context) error {
	h.destroys.Add(1)
	return nil
}

func (h *fakeHandle) Close() error {
	h.closes.Add(1)
	return h.closeErr
}

// fakeFactory builds fakeHandles and counts invocations per effect.
type fakeFactory struct {
	mu          sync.Mutex
	calls       map[effect.ID]int
	handles     map[effect.ID]*fakeHandle
	createErr   map[effect.ID]error
	createGate  map[effect.ID]chan struct{}
	processErr  map[effect.ID]error
	processGate map[effect.ID]chan struct{}
	closeErr    map[effect.ID]error
	started     chan effect.ID
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		calls:       make(map[effect.ID]int),
		handles:     make(map[effect.ID]*fakeHandle),
		createErr:   make(map[effect.ID]error),
		createGate:  make(map[effect.ID]chan struct{}),
		processErr:  make(map[effect.ID]error),
		processGate: make(map[effect.ID]chan struct{}),
		closeErr:    make(map[effect.ID]error),
		started:     make(chan effect.ID, 16),
	}
}

func (f *fakeFactory) Create(ctx context.Context, id effect.ID) (processor.Handle, error) {
	f.mu.Lock()
	f.calls[id]++
	gate := f.createGate[id]
	err := f.createErr[id]
	f.mu.Unlock()

	f.started <- id
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandle{
		id:         id,
		processErr: f.processErr[id],
		closeErr:   f.closeErr[id],
		gate:       f.processGate[id],
	}
	f.handles[id] = h
	return h, nil
}

func (f *fakeFactory) callCount(id effect.ID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeFactory) handle(id effect.ID) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[id]
}

var errBoom = errors.New("boom")
