package reaper

import (
	"context"
	"errors"
	"testing"

	"github.com/opd-ai/fxswitch/binder"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrack struct {
	id    string
	err   error
	panic bool
	stops int
}

func (t *fakeTrack) ID() string {
	return t.id
}

func (t *fakeTrack) Kind() string {
	return media.KindVideo
}

func (t *fakeTrack) Stop() error {
	t.stops++
	if t.panic {
		panic("driver crashed")
	}
	return t.err
}

type fakeStream struct {
	tracks []media.Track
}

func (s *fakeStream) ID() string {
	return "raw"
}

func (s *fakeStream) Tracks() []media.Track {
	return s.tracks
}

type fakeHandle struct {
	id         effect.ID
	closeErr   error
	destroyErr error
	closes     int
	destroys   int
	order      []string
}

func (h *fakeHandle) Effect() effect.ID {
	return h.id
}

func (h *fakeHandle) State() processor.State {
	return processor.StateReady
}

func (h *fakeHandle) Process(ctx context.Context, in media.Stream) (media.Stream, error) {
	return in, nil
}

func (h *fakeHandle) Destroy(ctx context.Context) error {
	h.destroys++
	h.order = append(h.order, "destroy")
	return h.destroyErr
}

func (h *fakeHandle) Close() error {
	h.closes++
	h.order = append(h.order, "close")
	return h.closeErr
}

type fakeCache struct {
	handles []processor.Handle
	evicts  int
}

func (c *fakeCache) EvictAll() []processor.Handle {
	c.evicts++
	out := c.handles
	c.handles = nil
	return out
}

func TestCloseAll_ReleasesEverythingOnce(t *testing.T) {
	t1 := &fakeTrack{id: "t1"}
	t2 := &fakeTrack{id: "t2"}
	raw := &fakeStream{tracks: []media.Track{t1, t2}}
	blur := &fakeHandle{id: effect.Blur}
	overlay := &fakeHandle{id: effect.Overlay}
	cache := &fakeCache{handles: []processor.Handle{blur, overlay}}
	binding := binder.Binding{Processor: overlay, Output: raw}

	report := New().CloseAll(context.Background(), &binding, cache, raw)

	require.NoError(t, report.Err())
	assert.Equal(t, 2, report.TracksStopped)
	assert.Equal(t, 2, report.HandlesReleased)
	assert.Equal(t, 1, t1.stops)
	assert.Equal(t, 1, t2.stops)
	for _, h := range []*fakeHandle{blur, overlay} {
		assert.Equal(t, 1, h.closes, h.id.String())
		assert.Equal(t, 1, h.destroys, h.id.String())
	}
	assert.Equal(t, []string{"destroy", "close"}, overlay.order)
	assert.Equal(t, []string{"close", "destroy"}, blur.order)
	assert.Equal(t, binder.Binding{}, binding)
	assert.Equal(t, 1, cache.evicts)
}

func TestCloseAll_FailuresDoNotShortCircuit(t *testing.T) {
	bad := &fakeTrack{id: "bad", err: errors.New("ebusy")}
	crashing := &fakeTrack{id: "crash", panic: true}
	good := &fakeTrack{id: "good"}
	raw := &fakeStream{tracks: []media.Track{bad, crashing, good}}

	active := &fakeHandle{id: effect.Blur, destroyErr: errors.New("destroy failed"), closeErr: errors.New("close failed")}
	cached := &fakeHandle{id: effect.Overlay, closeErr: errors.New("close failed")}
	cache := &fakeCache{handles: []processor.Handle{active, cached}}
	binding := binder.Binding{Processor: active}

	var hooked []Failure
	report := New(WithFailureHook(func(f Failure) { hooked = append(hooked, f) })).
		CloseAll(context.Background(), &binding, cache, raw)

	assert.Equal(t, 1, report.TracksStopped)
	assert.Equal(t, 2, report.TracksFailed)
	assert.Equal(t, 1, good.stops)
	assert.Equal(t, 1, bad.stops)
	assert.Equal(t, 1, crashing.stops)

	assert.Equal(t, 1, active.closes)
	assert.Equal(t, 1, active.destroys)
	assert.Equal(t, 1, cached.closes)
	assert.Equal(t, 1, cached.destroys)

	require.Len(t, report.Failures, 5)
	assert.Equal(t, hooked, report.Failures)
	steps := make([]Step, 0, len(report.Failures))
	for _, f := range report.Failures {
		assert.ErrorIs(t, f.Err, ErrTeardown)
		steps = append(steps, f.Step)
	}
	assert.Equal(t, []Step{StepStopTrack, StepStopTrack, StepDestroyActive, StepCloseActive, StepCloseCached}, steps)
	assert.Contains(t, report.Failures[1].Err.Error(), "panic: driver crashed")
	assert.ErrorIs(t, report.Err(), ErrTeardown)
}

func TestCloseAll_NilArguments(t *testing.T) {
	report := New().CloseAll(context.Background(), nil, nil, nil)
	assert.NoError(t, report.Err())
	assert.Zero(t, report.HandlesReleased)

	var binding binder.Binding
	report = New().CloseAll(context.Background(), &binding, &fakeCache{}, &fakeStream{tracks: []media.Track{nil}})
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "<nil>", report.Failures[0].Target)
}

func TestCloseAll_SealedCacheIsEmpty(t *testing.T) {
	factory := processor.FactoryFunc(func(ctx context.Context, id effect.ID) (processor.Handle, error) {
		return &fakeHandle{id: id}, nil
	})
	cache := processor.NewCache(factory)
	h, err := cache.GetOrCreate(context.Background(), effect.Blur)
	require.NoError(t, err)

	report := New().CloseAll(context.Background(), &binder.Binding{}, cache, nil)
	require.NoError(t, report.Err())
	assert.Equal(t, 1, report.HandlesReleased)
	assert.Equal(t, 1, h.(*fakeHandle).closes)
	assert.Equal(t, 0, cache.Len())
}
