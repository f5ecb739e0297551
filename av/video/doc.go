// Package video provides the frame-level video processing used by effect
// pipelines.
//
// Frames are YUV420 (`VideoFrame`): a full-resolution luminance plane and
// two chroma planes subsampled by two in each direction.
//
// # Pipeline
//
// A FrameProcessor runs each frame through:
//
//	YUV420 Input → Validation → Scaling → Effects → YUV420 Output
//
// Scaling is skipped when no target size is configured or the frame already
// has it. Effects run in the order given.
//
// # Effects
//
// All effects implement Effect and never modify their input frame:
//
//	blur := video.NewBlurEffect(3)                        // separable box blur on Y
//	overlay := video.NewSolidOverlayEffect(16, 128, 128, 96) // replace dark background
//
//	processor := video.NewFrameProcessor(640, 480, blur)
//	out, err := processor.ProcessFrame(frame)
//	if err != nil {
//	    return fmt.Errorf("processing failed: %w", err)
//	}
//
// OverlayEffect keys background pixels by a luma threshold and fills them
// from a backdrop frame that is scaled to each frame size once and cached
// until Release.
//
// # Thread Safety
//
// Scaler is stateless. FrameProcessor and OverlayEffect guard their
// internal state and may be shared between goroutines.
package video
