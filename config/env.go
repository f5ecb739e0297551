package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Environment variables read by ApplyEnvironment.
const (
	EnvCameraWidth      = "FXSWITCH_CAMERA_WIDTH"
	EnvCameraHeight     = "FXSWITCH_CAMERA_HEIGHT"
	EnvFPS              = "FXSWITCH_FPS"
	EnvOutputWidth      = "FXSWITCH_OUTPUT_WIDTH"
	EnvOutputHeight     = "FXSWITCH_OUTPUT_HEIGHT"
	EnvBuffer           = "FXSWITCH_BUFFER"
	EnvBlurRadius       = "FXSWITCH_BLUR_RADIUS"
	EnvOverlayY         = "FXSWITCH_OVERLAY_Y"
	EnvOverlayU         = "FXSWITCH_OVERLAY_U"
	EnvOverlayV         = "FXSWITCH_OVERLAY_V"
	EnvOverlayThreshold = "FXSWITCH_OVERLAY_THRESHOLD"
	EnvLogLevel         = "FXSWITCH_LOG_LEVEL"
	EnvLogFormat        = "FXSWITCH_LOG_FORMAT"
	EnvMetricsNamespace = "FXSWITCH_METRICS_NAMESPACE"
)

// ApplyEnvironment overrides opts from FXSWITCH_* variables. Unparseable
// or out of range values are logged and ignored.
func ApplyEnvironment(opts *Options) {
	parseIntSetting(EnvCameraWidth, &opts.CameraWidth, MinDimension, MaxDimension)
	parseIntSetting(EnvCameraHeight, &opts.CameraHeight, MinDimension, MaxDimension)
	parseFPSSetting(opts)
	parseIntSetting(EnvOutputWidth, &opts.OutputWidth, 0, MaxDimension)
	parseIntSetting(EnvOutputHeight, &opts.OutputHeight, 0, MaxDimension)
	parseIntSetting(EnvBuffer, &opts.Buffer, 1, 1024)
	parseIntSetting(EnvBlurRadius, &opts.BlurRadius, MinBlurRadius, MaxBlurRadius)
	parseIntSetting(EnvOverlayY, &opts.OverlayY, 0, 255)
	parseIntSetting(EnvOverlayU, &opts.OverlayU, 0, 255)
	parseIntSetting(EnvOverlayV, &opts.OverlayV, 0, 255)
	parseIntSetting(EnvOverlayThreshold, &opts.OverlayThreshold, 0, 255)
	parseLogLevelSetting(opts)
	parseLogFormatSetting(opts)

	if ns := os.Getenv(EnvMetricsNamespace); ns != "" {
		opts.MetricsNamespace = ns
	}
}

// parseIntSetting sets *dst from env when it parses and lies in [min, max].
func parseIntSetting(env string, dst *int, min, max int) {
	raw := os.Getenv(env)
	if raw == "" {
		return
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     env,
			"value":       raw,
			"error":       err.Error(),
			"using_value": *dst,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	if v < min || v > max {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     env,
			"value":       v,
			"min":         min,
			"max":         max,
			"using_value": *dst,
		}).Warn("Environment variable out of bounds, using default")
		return
	}
	*dst = v
}

func parseFPSSetting(opts *Options) {
	raw := os.Getenv(EnvFPS)
	if raw == "" {
		return
	}

	fps, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || fps <= 0 || fps > MaxFPS {
		fields := logrus.Fields{
			"function":    "parseFPSSetting",
			"env_var":     EnvFPS,
			"value":       raw,
			"max":         MaxFPS,
			"using_value": opts.FPS,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		logrus.WithFields(fields).Warn("Invalid FXSWITCH_FPS, using default")
		return
	}
	opts.FPS = fps
}

func parseLogLevelSetting(opts *Options) {
	raw := os.Getenv(EnvLogLevel)
	if raw == "" {
		return
	}
	if _, err := logrus.ParseLevel(raw); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseLogLevelSetting",
			"env_var":     EnvLogLevel,
			"value":       raw,
			"error":       err.Error(),
			"using_value": opts.LogLevel,
		}).Warn("Failed to parse FXSWITCH_LOG_LEVEL, using default")
		return
	}
	opts.LogLevel = raw
}

func parseLogFormatSetting(opts *Options) {
	raw := strings.ToLower(os.Getenv(EnvLogFormat))
	switch raw {
	case "":
	case "text", "json":
		opts.LogFormat = raw
	default:
		logrus.WithFields(logrus.Fields{
			"function":    "parseLogFormatSetting",
			"env_var":     EnvLogFormat,
			"value":       raw,
			"using_value": opts.LogFormat,
		}).Warn("Unknown FXSWITCH_LOG_FORMAT, using default")
	}
}
