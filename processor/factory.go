package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/opd-ai/fxswitch/av/video"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/sirupsen/logrus"
)

// FactoryOptions configures the pipelines built by EffectFactory.
type FactoryOptions struct {
	// OutputWidth and OutputHeight rescale processed frames; zero keeps the
	// input size.
	OutputWidth  uint16
	OutputHeight uint16
	// Buffer is the output frame channel capacity.
	Buffer int

	BlurRadius int

	OverlayY         byte
	OverlayU         byte
	OverlayV         byte
	OverlayThreshold byte
	// OverlayBackdrop replaces the solid colour backdrop when set.
	OverlayBackdrop *video.VideoFrame
}

// DefaultFactoryOptions returns the options used when none are supplied.
func DefaultFactoryOptions() FactoryOptions {
	return FactoryOptions{
		Buffer:           2,
		BlurRadius:       3,
		OverlayY:         16,
		OverlayU:         128,
		OverlayV:         128,
		OverlayThreshold: 96,
	}
}

// EffectBuilder constructs the frame effects for one effect.
type EffectBuilder func(opts FactoryOptions) ([]video.Effect, error)

// EffectFactory builds Pipeline handles from registered effect builders.
// It is safe for concurrent use.
type EffectFactory struct {
	mu       sync.RWMutex
	opts     FactoryOptions
	builders map[effect.ID]EffectBuilder
}

// NewEffectFactory creates a factory with builders for Blur and Overlay.
func NewEffectFactory(opts FactoryOptions) *EffectFactory {
	f := &EffectFactory{
		opts:     opts,
		builders: make(map[effect.ID]EffectBuilder),
	}
	f.Register(effect.Blur, buildBlur)
	f.Register(effect.Overlay, buildOverlay)

	logrus.WithFields(logrus.Fields{
		"function":      "NewEffectFactory",
		"output_width":  opts.OutputWidth,
		"output_height": opts.OutputHeight,
		"blur_radius":   opts.BlurRadius,
		"threshold":     opts.OverlayThreshold,
	}).Debug("Effect factory created")

	return f
}

// Register installs or replaces the builder for id. effect.None cannot be
// registered.
func (f *EffectFactory) Register(id effect.ID, builder EffectBuilder) {
	if id == effect.None || !id.Valid() || builder == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[id] = builder
}

// Create builds a ready Pipeline for id. Errors wrap ErrCreation.
func (f *EffectFactory) Create(ctx context.Context, id effect.ID) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCreation, id, err)
	}

	f.mu.RLock()
	builder, ok := f.builders[id]
	opts := f.opts
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %w: %s", ErrCreation, ErrUnsupportedEffect, id)
	}

	effects, err := builder(opts)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "EffectFactory.Create",
			"effect":   id.String(),
			"error":    err.Error(),
		}).Error("Effect builder failed")
		return nil, fmt.Errorf("%w: %s: %w", ErrCreation, id, err)
	}

	frames := video.NewFrameProcessor(opts.OutputWidth, opts.OutputHeight, effects...)

	logrus.WithFields(logrus.Fields{
		"function": "EffectFactory.Create",
		"effect":   id.String(),
		"chain":    frames.Name(),
	}).Info("Processor created")

	return NewPipeline(id, frames, opts.Buffer), nil
}

func buildBlur(opts FactoryOptions) ([]video.Effect, error) {
	return []video.Effect{video.NewBlurEffect(opts.BlurRadius)}, nil
}

func buildOverlay(opts FactoryOptions) ([]video.Effect, error) {
	if opts.OverlayBackdrop == nil {
		return []video.Effect{
			video.NewSolidOverlayEffect(opts.OverlayY, opts.OverlayU, opts.OverlayV, opts.OverlayThreshold),
		}, nil
	}

	overlay, err := video.NewOverlayEffect(opts.OverlayBackdrop, opts.OverlayThreshold)
	if err != nil {
		return nil, err
	}
	return []video.Effect{overlay}, nil
}
