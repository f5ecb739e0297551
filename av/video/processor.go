// Package video provides per-frame video processing.
//
// FrameProcessor is the unit a processing pipeline runs for every frame:
//
//	YUV420 Input → Validation → Scaling → Effects → YUV420 Output
package video

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// FrameProcessor runs validation, optional scaling and an effect chain on
// each frame. It is safe for concurrent use.
type FrameProcessor struct {
	scaler  *Scaler
	effects *EffectChain
	width   uint16 // target width, 0 keeps the input size
	height  uint16 // target height, 0 keeps the input size

	mu        sync.Mutex
	processed uint64
	failed    uint64
}

// NewFrameProcessor creates a processor applying effects in order. A zero
// target size disables scaling.
func NewFrameProcessor(width, height uint16, effects ...Effect) *FrameProcessor {
	logrus.WithFields(logrus.Fields{
		"function":     "NewFrameProcessor",
		"width":        width,
		"height":       height,
		"effect_count": len(effects),
	}).Debug("Creating frame processor")

	return &FrameProcessor{
		scaler:  NewScaler(),
		effects: NewEffectChain(effects...),
		width:   width,
		height:  height,
	}
}

// ProcessFrame runs one frame through the pipeline.
func (p *FrameProcessor) ProcessFrame(frame *VideoFrame) (*VideoFrame, error) {
	out, err := p.process(frame)

	p.mu.Lock()
	if err != nil {
		p.failed++
	} else {
		p.processed++
	}
	p.mu.Unlock()

	return out, err
}

func (p *FrameProcessor) process(frame *VideoFrame) (*VideoFrame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	scaled, err := p.applyScaling(frame)
	if err != nil {
		return nil, err
	}

	return p.applyEffects(scaled)
}

// applyScaling scales the frame to the target resolution if scaling is required.
func (p *FrameProcessor) applyScaling(frame *VideoFrame) (*VideoFrame, error) {
	if p.width == 0 || p.height == 0 {
		return frame, nil
	}
	if !p.scaler.IsScalingRequired(frame.Width, frame.Height, p.width, p.height) {
		return frame, nil
	}

	scaledFrame, err := p.scaler.Scale(frame, p.width, p.height)
	if err != nil {
		return nil, fmt.Errorf("scaling failed: %w", err)
	}
	return scaledFrame, nil
}

// applyEffects applies the configured effects chain to the video frame.
func (p *FrameProcessor) applyEffects(frame *VideoFrame) (*VideoFrame, error) {
	if p.effects.GetEffectCount() == 0 {
		return frame, nil
	}

	effectFrame, err := p.effects.Apply(frame)
	if err != nil {
		return nil, fmt.Errorf("effects processing failed: %w", err)
	}
	return effectFrame, nil
}

// Name describes the effect chain.
func (p *FrameProcessor) Name() string {
	return p.effects.GetName()
}

// Stats returns the number of frames processed and failed so far.
func (p *FrameProcessor) Stats() (processed, failed uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processed, p.failed
}

// Release drops effect-held resources. The processor must not be used
// afterwards.
func (p *FrameProcessor) Release() {
	for _, effect := range p.effects.effects {
		if r, ok := effect.(interface{ Release() }); ok {
			r.Release()
		}
	}
	p.effects.Clear()
}
