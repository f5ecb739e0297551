package binder

import (
	"context"
	"errors"
	"testing"

	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStream struct{ id string }

func (s testStream) ID() string {
	return s.id
}

func (s testStream) Tracks() []media.Track {
	return nil
}

type fakeHandle struct {
	processErr error
	destroyErr error
	nilOutput  bool
	processed  int
	destroyed  int
}

func (h *fakeHandle) Effect() effect.ID {
	return effect.Blur
}

func (h *fakeHandle) State() processor.State {
	return processor.StateReady
}

func (h *fakeHandle) Process(ctx context.Context, in media.Stream) (media.Stream, error) {
	h.processed++
	if h.processErr != nil {
		return nil, h.processErr
	}
	if h.nilOutput {
		return nil, nil
	}
	return testStream{id: "out-" + in.ID()}, nil
}

func (h *fakeHandle) Destroy(ctx context.Context) error {
	h.destroyed++
	return h.destroyErr
}

func (h *fakeHandle) Close() error {
	return nil
}

func TestBinder_NilHandleIsIdentity(t *testing.T) {
	b := New()
	raw := testStream{id: "raw"}

	out, err := b.Bind(context.Background(), raw, nil)
	require.NoError(t, err)
	assert.Equal(t, raw, out)
	require.NoError(t, b.Unbind(context.Background(), nil))
}

func TestBinder_BindUnbindRebind(t *testing.T) {
	b := New()
	h := &fakeHandle{}
	raw := testStream{id: "raw"}
	ctx := context.Background()

	out, err := b.Bind(ctx, raw, h)
	require.NoError(t, err)
	assert.Equal(t, "out-raw", out.ID())
	assert.True(t, b.IsBound(h))

	_, err = b.Bind(ctx, raw, h)
	assert.ErrorIs(t, err, ErrAlreadyBound)
	assert.Equal(t, 1, h.processed)

	require.NoError(t, b.Unbind(ctx, h))
	assert.False(t, b.IsBound(h))
	assert.Equal(t, 1, h.destroyed)

	_, err = b.Bind(ctx, raw, h)
	require.NoError(t, err)
	assert.Equal(t, 2, h.processed)
}

func TestBinder_ProcessingFailureIsSignalled(t *testing.T) {
	b := New()
	cause := errors.New("webgl context lost")
	h := &fakeHandle{processErr: cause}

	out, err := b.Bind(context.Background(), testStream{id: "raw"}, h)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrProcessing)
	assert.ErrorIs(t, err, cause)
	assert.False(t, b.IsBound(h))
}

func TestBinder_NilOutputIsProcessingFailure(t *testing.T) {
	b := New()
	_, err := b.Bind(context.Background(), testStream{id: "raw"}, &fakeHandle{nilOutput: true})
	assert.ErrorIs(t, err, ErrProcessing)
}

func TestBinder_UnbindClearsMarkOnDestroyFailure(t *testing.T) {
	b := New()
	cause := errors.New("stuck")
	h := &fakeHandle{destroyErr: cause}

	_, err := b.Bind(context.Background(), testStream{id: "raw"}, h)
	require.NoError(t, err)

	err = b.Unbind(context.Background(), h)
	assert.ErrorIs(t, err, cause)
	assert.False(t, b.IsBound(h))
}

func TestBinder_Reset(t *testing.T) {
	b := New()
	h := &fakeHandle{}
	_, err := b.Bind(context.Background(), testStream{id: "raw"}, h)
	require.NoError(t, err)

	b.Reset()
	assert.False(t, b.IsBound(h))
	assert.Equal(t, 0, h.destroyed)
}
