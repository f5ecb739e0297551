// Package video provides video scaling capabilities.
//
// This file implements bilinear resizing of YUV420 frames, used to fit
// capture frames to the configured output resolution and backdrops to the
// frame being composited.
package video

import (
	"fmt"
)

// MinScaleDimension is the smallest width or height Scale accepts.
const MinScaleDimension = 16

// Scaler resizes YUV420 frames. It holds no state and is safe for
// concurrent use.
type Scaler struct{}

// NewScaler creates a new video frame scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// plane describes one Y, U or V plane of a frame.
type plane struct {
	data   []byte
	width  int
	height int
	stride int
}

// Scale resizes a YUV420 video frame to the specified dimensions.
//
// Target dimensions must be even and at least MinScaleDimension. When the
// dimensions already match, a copy of the frame is returned.
func (s *Scaler) Scale(frame *VideoFrame, targetWidth, targetHeight uint16) (*VideoFrame, error) {
	if frame == nil {
		return nil, fmt.Errorf("source frame cannot be nil")
	}
	if targetWidth == 0 || targetHeight == 0 {
		return nil, fmt.Errorf("invalid target dimensions: %dx%d", targetWidth, targetHeight)
	}
	if targetWidth%2 != 0 || targetHeight%2 != 0 {
		return nil, fmt.Errorf("target dimensions must be even for YUV420: %dx%d", targetWidth, targetHeight)
	}
	if targetWidth < MinScaleDimension || targetHeight < MinScaleDimension {
		return nil, fmt.Errorf("target dimensions too small: %dx%d (minimum %dx%d)",
			targetWidth, targetHeight, MinScaleDimension, MinScaleDimension)
	}

	if !s.IsScalingRequired(frame.Width, frame.Height, targetWidth, targetHeight) {
		return frame.Clone(), nil
	}

	result := NewVideoFrame(targetWidth, targetHeight, 0, 0, 0)
	result.Sequence = frame.Sequence

	srcW, srcH := int(frame.Width), int(frame.Height)
	dstW, dstH := int(targetWidth), int(targetHeight)

	pairs := []struct {
		name     string
		src, dst plane
	}{
		{"Y", plane{frame.Y, srcW, srcH, frame.YStride}, plane{result.Y, dstW, dstH, result.YStride}},
		{"U", plane{frame.U, srcW / 2, srcH / 2, frame.UStride}, plane{result.U, dstW / 2, dstH / 2, result.UStride}},
		{"V", plane{frame.V, srcW / 2, srcH / 2, frame.VStride}, plane{result.V, dstW / 2, dstH / 2, result.VStride}},
	}
	for _, p := range pairs {
		if err := scalePlane(p.src, p.dst); err != nil {
			return nil, fmt.Errorf("failed to scale %s plane: %w", p.name, err)
		}
	}

	return result, nil
}

// scalePlane resamples src into dst using bilinear interpolation.
func scalePlane(src, dst plane) error {
	if len(src.data) < src.height*src.stride {
		return fmt.Errorf("source buffer too small: %d < %d", len(src.data), src.height*src.stride)
	}
	if len(dst.data) < dst.height*dst.stride {
		return fmt.Errorf("destination buffer too small: %d < %d", len(dst.data), dst.height*dst.stride)
	}

	xRatio := float64(src.width) / float64(dst.width)
	yRatio := float64(src.height) / float64(dst.height)

	for y := 0; y < dst.height; y++ {
		srcY := float64(y) * yRatio
		y1 := int(srcY)
		y2 := minInt(y1+1, src.height-1)
		fy := srcY - float64(y1)

		for x := 0; x < dst.width; x++ {
			srcX := float64(x) * xRatio
			x1 := int(srcX)
			x2 := minInt(x1+1, src.width-1)
			fx := srcX - float64(x1)

			p11 := float64(src.data[y1*src.stride+x1])
			p12 := float64(src.data[y1*src.stride+x2])
			p21 := float64(src.data[y2*src.stride+x1])
			p22 := float64(src.data[y2*src.stride+x2])

			top := p11*(1-fx) + p12*fx
			bottom := p21*(1-fx) + p22*fx
			dst.data[y*dst.stride+x] = byte(top*(1-fy) + bottom*fy + 0.5)
		}
	}

	return nil
}

// IsScalingRequired checks if scaling is needed for given dimensions.
func (s *Scaler) IsScalingRequired(srcWidth, srcHeight, dstWidth, dstHeight uint16) bool {
	return srcWidth != dstWidth || srcHeight != dstHeight
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
