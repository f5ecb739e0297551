// Package config loads fxswitch options from defaults, an optional YAML
// file and FXSWITCH_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalidOptions indicates an option outside its accepted range.
var ErrInvalidOptions = errors.New("invalid options")

// Bounds for validated options.
const (
	MinDimension  = 16
	MaxDimension  = 4096
	MaxFPS        = 120
	MinBlurRadius = 1
	MaxBlurRadius = 8
)

// Options holds every tunable of a session.
type Options struct {
	CameraWidth  int     `yaml:"cameraWidth"`
	CameraHeight int     `yaml:"cameraHeight"`
	FPS          float64 `yaml:"fps"`
	// OutputWidth and OutputHeight of zero keep the camera size.
	OutputWidth  int `yaml:"outputWidth"`
	OutputHeight int `yaml:"outputHeight"`
	Buffer       int `yaml:"buffer"`

	BlurRadius       int `yaml:"blurRadius"`
	OverlayY         int `yaml:"overlayY"`
	OverlayU         int `yaml:"overlayU"`
	OverlayV         int `yaml:"overlayV"`
	OverlayThreshold int `yaml:"overlayThreshold"`

	LogLevel         string `yaml:"logLevel"`
	LogFormat        string `yaml:"logFormat"`
	MetricsNamespace string `yaml:"metricsNamespace"`
}

// Default returns the built-in options.
func Default() Options {
	return Options{
		CameraWidth:      640,
		CameraHeight:     480,
		FPS:              15,
		Buffer:           2,
		BlurRadius:       3,
		OverlayY:         16,
		OverlayU:         128,
		OverlayV:         128,
		OverlayThreshold: 96,
		LogLevel:         "info",
		LogFormat:        "text",
		MetricsNamespace: "fxswitch",
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and the environment, then validates the result.
func Load(path string) (Options, error) {
	opts := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Options{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return Options{}, fmt.Errorf("%w: parsing %s: %w", ErrInvalidOptions, path, err)
		}
	}

	ApplyEnvironment(&opts)
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Load",
		"path":        path,
		"camera":      fmt.Sprintf("%dx%d@%.1f", opts.CameraWidth, opts.CameraHeight, opts.FPS),
		"blur_radius": opts.BlurRadius,
		"threshold":   opts.OverlayThreshold,
	}).Debug("Loaded configuration")

	return opts, nil
}

// Validate rejects options the session cannot run with.
func (o Options) Validate() error {
	var problems []string

	if !evenInRange(o.CameraWidth) || !evenInRange(o.CameraHeight) {
		problems = append(problems, fmt.Sprintf("camera size %dx%d must be even and within [%d, %d]",
			o.CameraWidth, o.CameraHeight, MinDimension, MaxDimension))
	}
	if o.FPS <= 0 || o.FPS > MaxFPS {
		problems = append(problems, fmt.Sprintf("fps %.2f must be within (0, %d]", o.FPS, MaxFPS))
	}
	if (o.OutputWidth == 0) != (o.OutputHeight == 0) {
		problems = append(problems, "output width and height must both be zero or both be set")
	} else if o.OutputWidth != 0 && (!evenInRange(o.OutputWidth) || !evenInRange(o.OutputHeight)) {
		problems = append(problems, fmt.Sprintf("output size %dx%d must be even and within [%d, %d]",
			o.OutputWidth, o.OutputHeight, MinDimension, MaxDimension))
	}
	if o.Buffer < 1 {
		problems = append(problems, fmt.Sprintf("buffer %d must be positive", o.Buffer))
	}
	if o.BlurRadius < MinBlurRadius || o.BlurRadius > MaxBlurRadius {
		problems = append(problems, fmt.Sprintf("blur radius %d must be within [%d, %d]",
			o.BlurRadius, MinBlurRadius, MaxBlurRadius))
	}
	for name, v := range map[string]int{
		"overlayY":         o.OverlayY,
		"overlayU":         o.OverlayU,
		"overlayV":         o.OverlayV,
		"overlayThreshold": o.OverlayThreshold,
	} {
		if v < 0 || v > 255 {
			problems = append(problems, fmt.Sprintf("%s %d must be within [0, 255]", name, v))
		}
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		problems = append(problems, fmt.Sprintf("log level %q: %v", o.LogLevel, err))
	}
	if o.LogFormat != "text" && o.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("log format %q must be text or json", o.LogFormat))
	}
	if o.MetricsNamespace == "" {
		problems = append(problems, "metrics namespace cannot be empty")
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(problems, "; "))
	}
	return nil
}

func evenInRange(v int) bool {
	return v >= MinDimension && v <= MaxDimension && v%2 == 0
}

// CameraConfig returns the synthetic camera settings.
func (o Options) CameraConfig() media.CameraConfig {
	return media.CameraConfig{
		Width:  uint16(o.CameraWidth),
		Height: uint16(o.CameraHeight),
		FPS:    o.FPS,
		Buffer: o.Buffer,
	}
}

// FactoryOptions returns the processor factory settings.
func (o Options) FactoryOptions() processor.FactoryOptions {
	return processor.FactoryOptions{
		OutputWidth:      uint16(o.OutputWidth),
		OutputHeight:     uint16(o.OutputHeight),
		Buffer:           o.Buffer,
		BlurRadius:       o.BlurRadius,
		OverlayY:         byte(o.OverlayY),
		OverlayU:         byte(o.OverlayU),
		OverlayV:         byte(o.OverlayV),
		OverlayThreshold: byte(o.OverlayThreshold),
	}
}

// ConfigureLogging applies the log level and format to the standard logger.
func (o Options) ConfigureLogging() error {
	level, err := logrus.ParseLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	logrus.SetLevel(level)

	switch o.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalidOptions, o.LogFormat)
	}
	return nil
}
