// Package reaper releases every native resource of a session on teardown.
//
// CloseAll never stops early: each release step runs even when earlier
// steps fail or panic, and every failure is recorded in the Report.
package reaper

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/fxswitch/binder"
	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/sirupsen/logrus"
)

// ErrTeardown wraps every recorded release failure. Teardown failures are
// never fatal.
var ErrTeardown = errors.New("teardown step failed")

// Step names a release step.
type Step string

// Release steps in execution order.
const (
	StepStopTrack     Step = "stop_track"
	StepDestroyActive Step = "destroy_active"
	StepCloseActive   Step = "close_active"
	StepCloseCached   Step = "close_cached"
	StepDestroyCached Step = "destroy_cached"
)

// Failure is one recorded release failure.
type Failure struct {
	Step   Step
	Target string
	Err    error
}

// Report summarizes a CloseAll sweep.
type Report struct {
	TracksStopped   int
	TracksFailed    int
	HandlesReleased int
	Failures        []Failure
}

// Err joins all recorded failures, or returns nil.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Evictor hands over every cached handle.
type Evictor interface {
	EvictAll() []processor.Handle
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithFailureHook registers a function called for every recorded failure.
func WithFailureHook(hook func(Failure)) Option {
	return func(r *Reaper) {
		r.onFailure = hook
	}
}

// Reaper performs the teardown sweep.
type Reaper struct {
	onFailure func(Failure)
}

// New creates a Reaper.
func New(opts ...Option) *Reaper {
	r := &Reaper{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CloseAll stops every track of raw, destroys and closes the active
// handle, closes and destroys every handle evicted from cache, and resets
// binding to its zero value. Each handle gets exactly one close and one
// destroy attempt even if it is both active and cached. Any argument may
// be nil.
func (r *Reaper) CloseAll(ctx context.Context, binding *binder.Binding, cache Evictor, raw media.Stream) Report {
	var report Report
	released := make(map[processor.Handle]bool)

	if raw != nil {
		for _, track := range raw.Tracks() {
			if r.attempt(&report, StepStopTrack, trackID(track), func() error { return track.Stop() }) {
				report.TracksStopped++
			} else {
				report.TracksFailed++
			}
		}
	}

	if binding != nil && binding.Processor != nil {
		h := binding.Processor
		r.attempt(&report, StepDestroyActive, h.Effect().String(), func() error {
			return h.Destroy(ctx)
		})
		r.attempt(&report, StepCloseActive, h.Effect().String(), h.Close)
		released[h] = true
		report.HandlesReleased++
	}

	if cache != nil {
		var handles []processor.Handle
		r.attempt(&report, StepCloseCached, "cache", func() error {
			handles = cache.EvictAll()
			return nil
		})
		for _, h := range handles {
			if h == nil || released[h] {
				continue
			}
			r.attempt(&report, StepCloseCached, h.Effect().String(), h.Close)
			r.attempt(&report, StepDestroyCached, h.Effect().String(), func() error {
				return h.Destroy(ctx)
			})
			released[h] = true
			report.HandlesReleased++
		}
	}

	if binding != nil {
		*binding = binder.Binding{}
	}

	logrus.WithFields(logrus.Fields{
		"function":         "Reaper.CloseAll",
		"tracks_stopped":   report.TracksStopped,
		"tracks_failed":    report.TracksFailed,
		"handles_released": report.HandlesReleased,
		"failures":         len(report.Failures),
	}).Info("Teardown sweep completed")

	return report
}

func trackID(track media.Track) string {
	if track == nil {
		return "<nil>"
	}
	return track.ID()
}

// attempt runs fn, recording an error or panic as a Failure. It reports
// whether fn succeeded.
func (r *Reaper) attempt(report *Report, step Step, target string, fn func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.record(report, step, target, fmt.Errorf("panic: %v", p))
			ok = false
		}
	}()

	if err := fn(); err != nil {
		r.record(report, step, target, err)
		return false
	}
	return true
}

func (r *Reaper) record(report *Report, step Step, target string, err error) {
	failure := Failure{
		Step:   step,
		Target: target,
		Err:    fmt.Errorf("%w: %s %s: %w", ErrTeardown, step, target, err),
	}
	report.Failures = append(report.Failures, failure)

	logrus.WithFields(logrus.Fields{
		"function": "Reaper.record",
		"step":     string(step),
		"target":   target,
		"error":    err.Error(),
	}).Warn("Teardown step failed, continuing")

	if r.onFailure != nil {
		r.onFailure(failure)
	}
}
