package video

import "fmt"

// VideoFrame represents a video frame in YUV420 format.
//
// Y is full resolution; U and V are subsampled by two in both directions.
type VideoFrame struct {
	Width   uint16
	Height  uint16
	Y       []byte // Luminance plane
	U       []byte // Chrominance U plane
	V       []byte // Chrominance V plane
	YStride int    // Stride for Y plane
	UStride int    // Stride for U plane
	VStride int    // Stride for V plane

	// Sequence is the capture sequence number, carried through processing.
	Sequence uint64
}

// NewVideoFrame allocates a tightly packed frame filled with the given
// Y, U and V values.
func NewVideoFrame(width, height uint16, y, u, v byte) *VideoFrame {
	uvWidth := int(width) / 2
	uvSize := uvWidth * (int(height) / 2)

	frame := &VideoFrame{
		Width:   width,
		Height:  height,
		YStride: int(width),
		UStride: uvWidth,
		VStride: uvWidth,
		Y:       make([]byte, int(width)*int(height)),
		U:       make([]byte, uvSize),
		V:       make([]byte, uvSize),
	}
	fill(frame.Y, y)
	fill(frame.U, u)
	fill(frame.V, v)
	return frame
}

// Validate checks frame dimensions and plane sizes against YUV420 layout.
func (f *VideoFrame) Validate() error {
	if f == nil {
		return fmt.Errorf("video frame cannot be nil")
	}
	if f.Width == 0 || f.Height == 0 {
		return fmt.Errorf("invalid frame dimensions: %dx%d", f.Width, f.Height)
	}

	expectedYSize := int(f.Width) * int(f.Height)
	expectedUVSize := int(f.Width/2) * int(f.Height/2)

	if len(f.Y) < expectedYSize {
		return fmt.Errorf("Y plane too small: got %d, expected %d", len(f.Y), expectedYSize)
	}
	if len(f.U) < expectedUVSize {
		return fmt.Errorf("U plane too small: got %d, expected %d", len(f.U), expectedUVSize)
	}
	if len(f.V) < expectedUVSize {
		return fmt.Errorf("V plane too small: got %d, expected %d", len(f.V), expectedUVSize)
	}
	return nil
}

// Clone returns a deep copy of the frame.
func (f *VideoFrame) Clone() *VideoFrame {
	return &VideoFrame{
		Width:    f.Width,
		Height:   f.Height,
		YStride:  f.YStride,
		UStride:  f.UStride,
		VStride:  f.VStride,
		Y:        append([]byte(nil), f.Y...),
		U:        append([]byte(nil), f.U...),
		V:        append([]byte(nil), f.V...),
		Sequence: f.Sequence,
	}
}

func fill(plane []byte, value byte) {
	for i := range plane {
		plane[i] = value
	}
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
