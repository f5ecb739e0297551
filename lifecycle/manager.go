// Package lifecycle owns the raw capture stream and switches video effects
// on it.
//
// A Manager acquires the raw stream once, binds at most one processor to
// it at a time and tears everything down on Close. Effect requests are
// serialized; a newer request cancels the one in flight, and a request
// that loses the race cleans up after itself.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/fxswitch/binder"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/metrics"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/opd-ai/fxswitch/reaper"
	"github.com/sirupsen/logrus"
)

// Option configures a Manager.
type Option func(*Manager)

// WithBinder replaces the default binder.
func WithBinder(b *binder.Binder) Option {
	return func(m *Manager) {
		if b != nil {
			m.binder = b
		}
	}
}

// WithReaper replaces the default reaper.
func WithReaper(r *reaper.Reaper) Option {
	return func(m *Manager) {
		if r != nil {
			m.reaper = r
		}
	}
}

// WithMetrics records switch outcomes on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(m *Manager) {
		m.metrics = rec
	}
}

// WithLogger sets the base log entry.
func WithLogger(entry *logrus.Entry) Option {
	return func(m *Manager) {
		if entry != nil {
			m.log = entry
		}
	}
}

// Manager coordinates the raw stream, the processor cache and the active
// binding. All methods are safe for concurrent use.
type Manager struct {
	source  media.Source
	cache   *processor.Cache
	binder  *binder.Binder
	reaper  *reaper.Reaper
	metrics *metrics.Recorder
	log     *logrus.Entry

	// sem serializes switches.
	sem chan struct{}

	mu       sync.Mutex
	state    State
	started  bool
	closed   bool
	raw      media.Stream
	binding  binder.Binding
	current  effect.ID
	target   effect.ID
	seq      uint64
	cancel   context.CancelFunc
	onOutput func(media.Stream)
}

// NewManager creates an idle manager.
func NewManager(source media.Source, cache *processor.Cache, opts ...Option) (*Manager, error) {
	if source == nil {
		return nil, errors.New("source cannot be nil")
	}
	if cache == nil {
		return nil, errors.New("processor cache cannot be nil")
	}

	m := &Manager{
		source: source,
		cache:  cache,
		binder: binder.New(),
		reaper: reaper.New(),
		log:    logrus.NewEntry(logrus.StandardLogger()),
		sem:    make(chan struct{}, 1),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SetOutputCallback registers fn to be called after every output change.
// The callback runs outside the manager lock and receives nil on teardown.
func (m *Manager) SetOutputCallback(fn func(media.Stream)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOutput = fn
}

// Effect returns the effect whose output is currently shown.
func (m *Manager) Effect() effect.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Output returns the stream to present: the processed stream while an
// effect is active, the raw stream otherwise, and nil before Start or after
// Close.
func (m *Manager) Output() media.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding.Output
}

// Snapshot returns a consistent view of the manager.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:    m.state,
		Effect:   m.current,
		Cached:   m.cache.Len(),
		Sequence: m.seq,
	}
	if m.binding.Output != nil {
		snap.OutputID = m.binding.Output.ID()
	}
	return snap
}

// Start acquires the raw stream and shows it unprocessed. A capture
// failure ends the session.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	raw, err := m.source.Acquire(ctx)
	if err == nil && raw == nil {
		err = errors.New("source returned no stream")
	}
	if err != nil {
		if !errors.Is(err, media.ErrCapture) {
			err = fmt.Errorf("%w: %w", media.ErrCapture, err)
		}
		m.log.WithFields(logrus.Fields{
			"function": "Manager.Start",
			"error":    err.Error(),
		}).Error("Failed to acquire raw stream")

		if _, cerr := m.Close(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		// Torn down while acquiring: the stream was never published.
		m.reaper.CloseAll(ctx, nil, nil, raw)
		return ErrClosed
	}
	m.raw = raw
	m.binding = binder.Binding{Output: raw}
	m.state = StateUnprocessed
	notify := m.onOutput
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"function":  "Manager.Start",
		"stream_id": raw.ID(),
		"tracks":    len(raw.Tracks()),
	}).Info("Raw stream acquired")

	if notify != nil {
		notify(raw)
	}
	return nil
}

// SelectEffect requests a change to id and returns the normalized target:
// requesting the effect already requested means none.
//
// A newer request cancels this one; the superseded call returns
// ErrSuperseded without touching the output. Creation and processing
// failures leave the raw stream shown and return errors wrapping
// processor.ErrCreation or binder.ErrProcessing.
func (m *Manager) SelectEffect(ctx context.Context, id effect.ID) (effect.ID, error) {
	if !id.Valid() {
		return effect.None, fmt.Errorf("%w: %d", effect.ErrUnknown, uint8(id))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return effect.None, ErrClosed
	}
	if m.raw == nil {
		m.mu.Unlock()
		return effect.None, ErrNotStarted
	}
	target := effect.Toggle(m.target, id)
	m.target = target
	m.seq++
	seq := m.seq
	if m.cancel != nil {
		m.cancel()
	}
	sctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	m.log.WithFields(logrus.Fields{
		"function":  "Manager.SelectEffect",
		"requested": id.String(),
		"target":    target.String(),
		"sequence":  seq,
	}).Debug("Effect change requested")

	select {
	case m.sem <- struct{}{}:
	case <-sctx.Done():
		if err := m.check(seq); err != nil {
			return target, m.abandon(seq, err)
		}
		m.settle(seq)
		return target, sctx.Err()
	}
	defer func() { <-m.sem }()

	err := m.switchTo(sctx, seq, target)
	m.metrics.SetCached(m.cache.Len())
	return target, err
}

func (m *Manager) switchTo(ctx context.Context, seq uint64, target effect.ID) error {
	m.mu.Lock()
	if err := m.checkLocked(seq); err != nil {
		m.mu.Unlock()
		return m.abandon(seq, err)
	}
	outgoing := m.binding.Processor
	m.state = StateSwitching
	m.mu.Unlock()

	if outgoing != nil {
		// A newer request cancels ctx; the outgoing stop still has to finish.
		if err := m.binder.Unbind(context.WithoutCancel(ctx), outgoing); err != nil {
			m.log.WithFields(logrus.Fields{
				"function": "Manager.switchTo",
				"effect":   outgoing.Effect().String(),
				"error":    err.Error(),
			}).Warn("Failed to destroy outgoing binding")
		}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.abandon(seq, ErrClosed)
	}
	changed := m.binding.Processor != nil
	m.binding = binder.Binding{Output: m.raw}
	m.current = effect.None
	raw := m.raw
	notify := m.onOutput
	m.mu.Unlock()

	if changed && notify != nil {
		notify(raw)
	}

	if target == effect.None {
		m.mu.Lock()
		if err := m.checkLocked(seq); err != nil {
			m.mu.Unlock()
			return m.abandon(seq, err)
		}
		m.state = StateUnprocessed
		m.mu.Unlock()

		m.metrics.Switched(effect.None)
		m.log.WithFields(logrus.Fields{
			"function": "Manager.switchTo",
			"sequence": seq,
		}).Info("Showing raw stream")
		return nil
	}

	h, err := m.cache.GetOrCreate(ctx, target)
	if cerr := m.check(seq); cerr != nil {
		// A handle created by the losing request stays cached for reuse.
		return m.abandon(seq, cerr)
	}
	if err != nil {
		if errors.Is(err, processor.ErrCreation) {
			return m.fail(seq, target, metrics.KindCreation, err)
		}
		m.settle(seq)
		return err
	}

	out, err := m.binder.Bind(ctx, raw, h)
	if err != nil {
		if cerr := m.check(seq); cerr != nil {
			return m.abandon(seq, cerr)
		}
		return m.fail(seq, target, metrics.KindProcessing, err)
	}

	m.mu.Lock()
	if cerr := m.checkLocked(seq); cerr != nil {
		m.mu.Unlock()
		m.discard(h)
		return m.abandon(seq, cerr)
	}
	m.binding = binder.Binding{Processor: h, Output: out}
	m.current = target
	m.state = StateProcessing
	notify = m.onOutput
	m.mu.Unlock()

	m.metrics.Switched(target)
	m.log.WithFields(logrus.Fields{
		"function":  "Manager.switchTo",
		"effect":    target.String(),
		"output_id": out.ID(),
		"sequence":  seq,
	}).Info("Effect applied")

	if notify != nil {
		notify(out)
	}
	return nil
}

// check reports whether the request seq may still publish results.
func (m *Manager) check(seq uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkLocked(seq)
}

func (m *Manager) checkLocked(seq uint64) error {
	if m.closed {
		return ErrClosed
	}
	if seq != m.seq {
		return ErrSuperseded
	}
	return nil
}

// abandon finishes a request that lost to a newer request or teardown.
func (m *Manager) abandon(seq uint64, err error) error {
	if errors.Is(err, ErrSuperseded) {
		m.metrics.Superseded()
	}
	m.log.WithFields(logrus.Fields{
		"function": "Manager.abandon",
		"sequence": seq,
		"reason":   err.Error(),
	}).Debug("Effect request discarded")
	return err
}

// settle ends a request seq that stopped early while still current: the
// requested effect falls back to the shown one.
func (m *Manager) settle(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.checkLocked(seq) != nil {
		return
	}
	m.target = m.current
	if m.state == StateSwitching {
		m.state = StateUnprocessed
	}
}

// fail reports a recovered creation or processing failure. The raw stream
// stays shown and the effect resets to none.
func (m *Manager) fail(seq uint64, target effect.ID, kind string, err error) error {
	m.settle(seq)
	m.metrics.Failed(target, kind)
	m.log.WithFields(logrus.Fields{
		"function": "Manager.fail",
		"effect":   target.String(),
		"kind":     kind,
		"error":    err.Error(),
	}).Error("Effect failed, showing raw stream")
	return err
}

// discard destroys a binding made by a request that can no longer publish
// it. The handle itself remains owned by the cache.
func (m *Manager) discard(h processor.Handle) {
	if err := m.binder.Unbind(context.Background(), h); err != nil {
		m.log.WithFields(logrus.Fields{
			"function": "Manager.discard",
			"effect":   h.Effect().String(),
			"error":    err.Error(),
		}).Warn("Failed to destroy stale binding")
	}
}

// Close tears the session down from any state. It cancels an in-flight
// switch without waiting for it. Only the first call releases anything;
// later calls return an empty report and nil.
func (m *Manager) Close(ctx context.Context) (reaper.Report, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return reaper.Report{}, nil
	}
	m.closed = true
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	binding := m.binding
	raw := m.raw
	hadOutput := binding.Output != nil
	m.binding = binder.Binding{}
	m.raw = nil
	m.current = effect.None
	m.target = effect.None
	m.state = StateClosed
	notify := m.onOutput
	m.mu.Unlock()

	if hadOutput && notify != nil {
		notify(nil)
	}

	report := m.reaper.CloseAll(ctx, &binding, m.cache, raw)
	m.binder.Reset()

	for _, f := range report.Failures {
		m.metrics.TeardownFailed(string(f.Step))
	}
	m.metrics.SetCached(m.cache.Len())

	m.log.WithFields(logrus.Fields{
		"function":         "Manager.Close",
		"tracks_stopped":   report.TracksStopped,
		"handles_released": report.HandlesReleased,
		"failures":         len(report.Failures),
	}).Info("Session torn down")

	return report, report.Err()
}
