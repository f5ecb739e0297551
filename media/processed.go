package media

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/opd-ai/fxswitch/av/video"
)

// ProcessedStream is the output of an effect pipeline. The pipeline is the
// only writer; it calls Send for every frame and End when it exits.
type ProcessedStream struct {
	id       string
	sourceID string
	track    *VideoTrack
	frames   chan *video.VideoFrame

	endOnce sync.Once
}

// NewProcessedStream creates an output stream derived from sourceID. onStop
// runs when the output track is stopped by a consumer and may be nil.
func NewProcessedStream(sourceID string, buffer int, onStop func()) *ProcessedStream {
	if buffer < 0 {
		buffer = 0
	}
	return &ProcessedStream{
		id:       uuid.NewString(),
		sourceID: sourceID,
		track: NewVideoTrack(func() error {
			if onStop != nil {
				onStop()
			}
			return nil
		}),
		frames: make(chan *video.VideoFrame, buffer),
	}
}

// ID returns the stream identifier.
func (s *ProcessedStream) ID() string { return s.id }

// SourceID returns the identifier of the stream this one was derived from.
func (s *ProcessedStream) SourceID() string { return s.sourceID }

// Tracks returns the single output track.
func (s *ProcessedStream) Tracks() []Track { return []Track{s.track} }

// Frames returns the processed frame channel.
func (s *ProcessedStream) Frames() <-chan *video.VideoFrame { return s.frames }

// Send delivers a frame, dropping it when the consumer is behind. It
// returns false once ctx is done.
func (s *ProcessedStream) Send(ctx context.Context, frame *video.VideoFrame) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.frames <- frame:
	case <-ctx.Done():
		return false
	default:
		// consumer is behind, drop the frame
	}
	return true
}

// End closes the frame channel. Only the writer may call it.
func (s *ProcessedStream) End() {
	s.endOnce.Do(func() {
		close(s.frames)
	})
}
