package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaler_Scale_UpAndDown(t *testing.T) {
	scaler := NewScaler()

	tests := []struct {
		name       string
		srcW, srcH uint16
		dstW, dstH uint16
	}{
		{name: "2x upscale", srcW: 320, srcH: 240, dstW: 640, dstH: 480},
		{name: "0.5x downscale", srcW: 640, srcH: 480, dstW: 320, dstH: 240},
		{name: "aspect change", srcW: 160, srcH: 120, dstW: 64, dstH: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := createTestFrame(tt.srcW, tt.srcH)
			src.Sequence = 42

			result, err := scaler.Scale(src, tt.dstW, tt.dstH)
			require.NoError(t, err)
			assert.Equal(t, tt.dstW, result.Width)
			assert.Equal(t, tt.dstH, result.Height)
			assert.Equal(t, int(tt.dstW), result.YStride)
			assert.Equal(t, int(tt.dstW/2), result.UStride)
			assert.Len(t, result.Y, int(tt.dstW)*int(tt.dstH))
			assert.Len(t, result.U, int(tt.dstW/2)*int(tt.dstH/2))
			assert.Len(t, result.V, int(tt.dstW/2)*int(tt.dstH/2))
			assert.Equal(t, uint64(42), result.Sequence)
			require.NoError(t, result.Validate())
		})
	}
}

func TestScaler_Scale_SameDimensionsCopies(t *testing.T) {
	scaler := NewScaler()
	src := createTestFrame(64, 48)
	src.Y[100] = 123

	result, err := scaler.Scale(src, 64, 48)
	require.NoError(t, err)
	assert.Equal(t, byte(123), result.Y[100])

	src.Y[100] = 200
	assert.Equal(t, byte(123), result.Y[100])
}

func TestScaler_Scale_ErrorCases(t *testing.T) {
	scaler := NewScaler()
	src := createTestFrame(320, 240)

	tests := []struct {
		name        string
		frame       *VideoFrame
		width       uint16
		height      uint16
		expectedErr string
	}{
		{name: "nil frame", frame: nil, width: 640, height: 480, expectedErr: "source frame cannot be nil"},
		{name: "zero width", frame: src, width: 0, height: 480, expectedErr: "invalid target dimensions"},
		{name: "odd height", frame: src, width: 640, height: 481, expectedErr: "must be even"},
		{name: "too small", frame: src, width: 8, height: 8, expectedErr: "too small"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := scaler.Scale(tt.frame, tt.width, tt.height)
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestScaler_Scale_UniformPlaneStaysUniform(t *testing.T) {
	scaler := NewScaler()
	src := NewVideoFrame(16, 16, 77, 90, 200)

	result, err := scaler.Scale(src, 64, 32)
	require.NoError(t, err)
	for _, v := range result.Y {
		require.Equal(t, byte(77), v)
	}
	for _, v := range result.U {
		require.Equal(t, byte(90), v)
	}
	for _, v := range result.V {
		require.Equal(t, byte(200), v)
	}
}

func TestScaler_IsScalingRequired(t *testing.T) {
	scaler := NewScaler()
	assert.False(t, scaler.IsScalingRequired(640, 480, 640, 480))
	assert.True(t, scaler.IsScalingRequired(640, 480, 320, 480))
	assert.True(t, scaler.IsScalingRequired(640, 480, 640, 240))
}

func BenchmarkScaler_Scale_VGAtoHD(b *testing.B) {
	scaler := NewScaler()
	src := createTestFrame(640, 480)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := scaler.Scale(src, 1280, 720); err != nil {
			b.Fatal(err)
		}
	}
}

// createTestFrame builds a YUV420 frame with a luma ramp and neutral chroma.
func createTestFrame(width, height uint16) *VideoFrame {
	frame := NewVideoFrame(width, height, 0, 128, 128)
	for i := range frame.Y {
		frame.Y[i] = byte(i % 256)
	}
	return frame
}
