// Package metrics exposes Prometheus collectors for effect switching.
package metrics

import (
	"github.com/opd-ai/fxswitch/effect"
	"github.com/prometheus/client_golang/prometheus"
)

// Failure kinds used as the "kind" label of EffectFailures.
const (
	KindCreation   = "creation"
	KindProcessing = "processing"
)

// Recorder holds the collectors. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	EffectSwitches     *prometheus.CounterVec
	ProcessorCreations *prometheus.CounterVec
	EffectFailures     *prometheus.CounterVec
	SupersededSwitches prometheus.Counter
	TeardownFailures   *prometheus.CounterVec
	CachedProcessors   prometheus.Gauge
}

// New creates the collectors under namespace and registers them with reg.
// A nil reg leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		EffectSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_switches_total",
			Help:      "Completed effect switches by resulting effect",
		}, []string{"effect"}),
		ProcessorCreations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processor_creations_total",
			Help:      "Processor factory invocations by effect",
		}, []string{"effect"}),
		EffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effect_failures_total",
			Help:      "Recovered effect failures by effect and kind",
		}, []string{"effect", "kind"}),
		SupersededSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "superseded_switches_total",
			Help:      "Effect switches discarded because a newer request or teardown arrived",
		}),
		TeardownFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardown_failures_total",
			Help:      "Recorded teardown failures by step",
		}, []string{"step"}),
		CachedProcessors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_processors",
			Help:      "Processors currently held by the cache",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			r.EffectSwitches, r.ProcessorCreations, r.EffectFailures,
			r.SupersededSwitches, r.TeardownFailures, r.CachedProcessors,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

// Switched counts a completed switch to id.
func (r *Recorder) Switched(id effect.ID) {
	if r == nil {
		return
	}
	r.EffectSwitches.WithLabelValues(id.String()).Inc()
}

// Created counts a factory invocation for id.
func (r *Recorder) Created(id effect.ID) {
	if r == nil {
		return
	}
	r.ProcessorCreations.WithLabelValues(id.String()).Inc()
}

// Failed counts a recovered failure of the given kind.
func (r *Recorder) Failed(id effect.ID, kind string) {
	if r == nil {
		return
	}
	r.EffectFailures.WithLabelValues(id.String(), kind).Inc()
}

// Superseded counts a discarded switch.
func (r *Recorder) Superseded() {
	if r == nil {
		return
	}
	r.SupersededSwitches.Inc()
}

// TeardownFailed counts a teardown failure at step.
func (r *Recorder) TeardownFailed(step string) {
	if r == nil {
		return
	}
	r.TeardownFailures.WithLabelValues(step).Inc()
}

// SetCached records the cache size.
func (r *Recorder) SetCached(n int) {
	if r == nil {
		return
	}
	r.CachedProcessors.Set(float64(n))
}
