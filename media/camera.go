package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opd-ai/fxswitch/av/video"
	"github.com/sirupsen/logrus"
)

// CameraConfig configures a SyntheticCamera.
type CameraConfig struct {
	Width  uint16
	Height uint16
	FPS    float64
	// Buffer is the frame channel capacity. Frames are dropped when full.
	Buffer int
}

// SyntheticCamera is a Source producing a moving YUV420 test pattern. It
// hands out at most one live stream at a time.
type SyntheticCamera struct {
	cfg CameraConfig

	mu     sync.Mutex
	active *CaptureStream
}

// NewSyntheticCamera validates cfg and returns a camera source.
func NewSyntheticCamera(cfg CameraConfig) (*SyntheticCamera, error) {
	if cfg.Width == 0 || cfg.Height == 0 || cfg.Width%2 != 0 || cfg.Height%2 != 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d must be non-zero and even",
			ErrInvalidCameraConfig, cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("%w: fps %.2f must be positive", ErrInvalidCameraConfig, cfg.FPS)
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	return &SyntheticCamera{cfg: cfg}, nil
}

// Acquire starts the capture goroutine and returns the raw stream. The
// stream's frames stop and its channel closes when its track is stopped.
func (c *SyntheticCamera) Acquire(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && !c.active.track.Stopped() {
		return nil, fmt.Errorf("%w: %w", ErrCapture, ErrSourceBusy)
	}

	stream := newCaptureStream(c.cfg)
	c.active = stream
	go stream.run()

	logrus.WithFields(logrus.Fields{
		"function":  "SyntheticCamera.Acquire",
		"stream_id": stream.id,
		"width":     c.cfg.Width,
		"height":    c.cfg.Height,
		"fps":       c.cfg.FPS,
	}).Info("Synthetic camera stream acquired")

	return stream, nil
}

// CaptureStream is a raw camera stream with a single video track.
type CaptureStream struct {
	id     string
	cfg    CameraConfig
	track  *VideoTrack
	frames chan *video.VideoFrame
	stop   chan struct{}
	exited chan struct{}
}

func newCaptureStream(cfg CameraConfig) *CaptureStream {
	s := &CaptureStream{
		id:     uuid.NewString(),
		cfg:    cfg,
		frames: make(chan *video.VideoFrame, cfg.Buffer),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	s.track = NewVideoTrack(func() error {
		close(s.stop)
		<-s.exited
		return nil
	})
	return s
}

// ID returns the stream identifier.
func (s *CaptureStream) ID() string { return s.id }

// Tracks returns the video track.
func (s *CaptureStream) Tracks() []Track { return []Track{s.track} }

// Frames returns the captured frame channel.
func (s *CaptureStream) Frames() <-chan *video.VideoFrame { return s.frames }

func (s *CaptureStream) run() {
	defer close(s.exited)
	defer close(s.frames)

	interval := time.Duration(float64(time.Second) / s.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			frame := testPattern(s.cfg.Width, s.cfg.Height, seq)
			seq++
			select {
			case s.frames <- frame:
			case <-s.stop:
				return
			default:
			}
		}
	}
}

// testPattern draws a diagonal luma ramp that scrolls with seq, leaving a
// dark band so background keying has something to replace.
func testPattern(width, height uint16, seq uint64) *video.VideoFrame {
	frame := video.NewVideoFrame(width, height, 0, 128, 128)
	frame.Sequence = seq
	w, h := int(width), int(height)
	shift := int(seq % 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			frame.Y[y*w+x] = byte((x + y + shift) % 256)
		}
	}
	return frame
}
