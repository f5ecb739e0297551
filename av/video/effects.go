// Package video provides video effects processing capabilities.
//
// This file implements the effects that can be applied to YUV420 frames:
// a box blur and a luma-keyed background overlay.
package video

import (
	"fmt"
	"sync"
)

// Effect represents a video effect that can be applied to frames.
type Effect interface {
	// Apply processes a video frame and returns the modified frame
	Apply(frame *VideoFrame) (*VideoFrame, error)
	// GetName returns the effect name for identification
	GetName() string
}

// EffectChain manages multiple effects applied in sequence.
type EffectChain struct {
	effects []Effect
}

// NewEffectChain creates a new effect processing chain.
func NewEffectChain(effects ...Effect) *EffectChain {
	return &EffectChain{
		effects: append(make([]Effect, 0, len(effects)), effects...),
	}
}

// AddEffect adds an effect to the processing chain.
func (ec *EffectChain) AddEffect(effect Effect) {
	ec.effects = append(ec.effects, effect)
}

// Apply processes a frame through all effects in the chain.
func (ec *EffectChain) Apply(frame *VideoFrame) (*VideoFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("input frame cannot be nil")
	}

	current := frame.Clone()
	for i, effect := range ec.effects {
		result, err := effect.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s) failed: %w", i, effect.GetName(), err)
		}
		current = result
	}

	return current, nil
}

// GetEffectCount returns the number of effects in the chain.
func (ec *EffectChain) GetEffectCount() int {
	return len(ec.effects)
}

// GetName joins the names of the chained effects.
func (ec *EffectChain) GetName() string {
	name := "Chain("
	for i, effect := range ec.effects {
		if i > 0 {
			name += ","
		}
		name += effect.GetName()
	}
	return name + ")"
}

// Clear removes all effects from the chain.
func (ec *EffectChain) Clear() {
	ec.effects = ec.effects[:0]
}

// Blur radius bounds.
const (
	MinBlurRadius = 1
	MaxBlurRadius = 8
)

// BlurEffect applies a separable box blur to the luminance plane.
type BlurEffect struct {
	radius int
}

// NewBlurEffect creates a blur effect with specified radius.
// radius is clamped to [MinBlurRadius, MaxBlurRadius].
func NewBlurEffect(radius int) *BlurEffect {
	if radius < MinBlurRadius {
		radius = MinBlurRadius
	}
	if radius > MaxBlurRadius {
		radius = MaxBlurRadius
	}

	return &BlurEffect{
		radius: radius,
	}
}

// Radius returns the clamped blur radius.
func (be *BlurEffect) Radius() int {
	return be.radius
}

// Apply blurs the Y plane with a horizontal pass followed by a vertical
// pass. Chroma is left untouched.
func (be *BlurEffect) Apply(frame *VideoFrame) (*VideoFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("input frame cannot be nil")
	}

	result := frame.Clone()
	width := int(frame.Width)
	height := int(frame.Height)
	stride := frame.YStride
	if stride == 0 {
		stride = width
	}
	if len(frame.Y) < stride*height {
		return nil, fmt.Errorf("Y plane too small for %dx%d (stride %d)", width, height, stride)
	}

	temp := make([]byte, len(frame.Y))

	// Horizontal pass: frame.Y -> temp
	for y := 0; y < height; y++ {
		row := y * stride
		for x := 0; x < width; x++ {
			lo, hi := window(x, be.radius, width)
			sum := 0
			for i := lo; i <= hi; i++ {
				sum += int(frame.Y[row+i])
			}
			temp[row+x] = byte(sum / (hi - lo + 1))
		}
	}

	// Vertical pass: temp -> result.Y
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			lo, hi := window(y, be.radius, height)
			sum := 0
			for i := lo; i <= hi; i++ {
				sum += int(temp[i*stride+x])
			}
			result.Y[y*stride+x] = byte(sum / (hi - lo + 1))
		}
	}

	return result, nil
}

// GetName returns the effect name.
func (be *BlurEffect) GetName() string {
	return fmt.Sprintf("Blur(%d)", be.radius)
}

func window(center, radius, limit int) (lo, hi int) {
	lo = center - radius
	if lo < 0 {
		lo = 0
	}
	hi = center + radius
	if hi >= limit {
		hi = limit - 1
	}
	return lo, hi
}

// OverlayEffect replaces the background of a frame with a backdrop.
//
// Pixels whose luminance is below the threshold are treated as background.
// The backdrop is scaled to the frame size on first use for each size and
// kept for later frames.
type OverlayEffect struct {
	backdrop  *VideoFrame
	threshold byte
	scaler    *Scaler

	mu     sync.Mutex
	scaled map[[2]uint16]*VideoFrame
}

// NewOverlayEffect creates an overlay effect from a backdrop frame.
func NewOverlayEffect(backdrop *VideoFrame, threshold byte) (*OverlayEffect, error) {
	if err := backdrop.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backdrop: %w", err)
	}

	return &OverlayEffect{
		backdrop:  backdrop.Clone(),
		threshold: threshold,
		scaler:    NewScaler(),
		scaled:    make(map[[2]uint16]*VideoFrame),
	}, nil
}

// NewSolidOverlayEffect creates an overlay effect whose backdrop is a single
// YUV colour.
func NewSolidOverlayEffect(y, u, v, threshold byte) *OverlayEffect {
	// A 16x16 solid frame always validates.
	effect, _ := NewOverlayEffect(NewVideoFrame(16, 16, y, u, v), threshold)
	return effect
}

// Apply composites the backdrop behind every pixel keyed as background.
func (oe *OverlayEffect) Apply(frame *VideoFrame) (*VideoFrame, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	backdrop, err := oe.backdropFor(frame.Width, frame.Height)
	if err != nil {
		return nil, err
	}

	result := frame.Clone()
	width := int(frame.Width)
	height := int(frame.Height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*frame.YStride + x
			if frame.Y[idx] >= oe.threshold {
				continue
			}
			result.Y[idx] = backdrop.Y[y*backdrop.YStride+x]

			// The top-left luma sample of each 2x2 block decides for chroma.
			if x%2 == 0 && y%2 == 0 {
				cx, cy := x/2, y/2
				result.U[cy*frame.UStride+cx] = backdrop.U[cy*backdrop.UStride+cx]
				result.V[cy*frame.VStride+cx] = backdrop.V[cy*backdrop.VStride+cx]
			}
		}
	}

	return result, nil
}

func (oe *OverlayEffect) backdropFor(width, height uint16) (*VideoFrame, error) {
	oe.mu.Lock()
	defer oe.mu.Unlock()

	key := [2]uint16{width, height}
	if scaled, ok := oe.scaled[key]; ok {
		return scaled, nil
	}

	scaled, err := oe.scaler.Scale(oe.backdrop, width, height)
	if err != nil {
		return nil, fmt.Errorf("backdrop scaling failed: %w", err)
	}
	oe.scaled[key] = scaled
	return scaled, nil
}

// Threshold returns the luma threshold below which pixels are replaced.
func (oe *OverlayEffect) Threshold() byte {
	return oe.threshold
}

// GetName returns the effect name.
func (oe *OverlayEffect) GetName() string {
	return fmt.Sprintf("Overlay(<%d)", oe.threshold)
}

// Release drops the scaled backdrop cache.
func (oe *OverlayEffect) Release() {
	oe.mu.Lock()
	defer oe.mu.Unlock()
	oe.scaled = make(map[[2]uint16]*VideoFrame)
}
