// Package media models capture streams and their tracks.
//
// A Stream is a set of stoppable tracks. Streams that carry video frames
// also implement FrameStream. The raw camera stream comes from a Source;
// processed streams are produced by effect pipelines.
package media

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/fxswitch/av/video"
)

// KindVideo is the kind reported by video tracks.
const KindVideo = "video"

// Track is a single stoppable media track.
type Track interface {
	// ID returns the unique track identifier
	ID() string
	// Kind returns the media kind, e.g. "video"
	Kind() string
	// Stop releases the track. Stopping twice is harmless.
	Stop() error
}

// Stream is a group of tracks with a stable identity.
type Stream interface {
	ID() string
	Tracks() []Track
}

// FrameStream is a Stream whose frames can be consumed.
type FrameStream interface {
	Stream
	// Frames returns the frame channel. It is closed when the stream ends.
	Frames() <-chan *video.VideoFrame
}

// Source acquires the raw capture stream.
type Source interface {
	Acquire(ctx context.Context) (Stream, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Stream, error)

// Acquire calls f(ctx).
func (f SourceFunc) Acquire(ctx context.Context) (Stream, error) {
	return f(ctx)
}

// VideoTrack is a video track whose Stop runs a release function once.
type VideoTrack struct {
	id      string
	once    sync.Once
	release func() error
	done    chan struct{}
	err     error
}

// NewVideoTrack creates a track. release may be nil.
func NewVideoTrack(release func() error) *VideoTrack {
	return &VideoTrack{
		id:      uuid.NewString(),
		release: release,
		done:    make(chan struct{}),
	}
}

// ID returns the track identifier.
func (t *VideoTrack) ID() string { return t.id }

// Kind returns KindVideo.
func (t *VideoTrack) Kind() string { return KindVideo }

// Stop runs the release function on the first call and returns its result
// on every call.
func (t *VideoTrack) Stop() error {
	t.once.Do(func() {
		if t.release != nil {
			t.err = t.release()
		}
		close(t.done)
	})
	return t.err
}

// Done is closed once the track has been stopped.
func (t *VideoTrack) Done() <-chan struct{} {
	return t.done
}

// Stopped reports whether Stop has been called.
func (t *VideoTrack) Stopped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
