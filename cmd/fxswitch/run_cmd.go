package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/opd-ai/fxswitch/av/video"
	"github.com/opd-ai/fxswitch/config"
	"github.com/opd-ai/fxswitch/effect"
	"github.com/opd-ai/fxswitch/lifecycle"
	"github.com/opd-ai/fxswitch/media"
	"github.com/opd-ai/fxswitch/metrics"
	"github.com/opd-ai/fxswitch/processor"
	"github.com/opd-ai/fxswitch/reaper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const teardownTimeout = 5 * time.Second

type runFlags struct {
	configPath  string
	selections  string
	interval    time.Duration
	frames      int64
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a camera session applying scripted effect selections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "", "YAML options file")
	cmd.Flags().StringVar(&flags.selections, "select", "", "comma-separated effect selections, e.g. blur,overlay,overlay")
	cmd.Flags().DurationVar(&flags.interval, "interval", 500*time.Millisecond, "delay between selections")
	cmd.Flags().Int64Var(&flags.frames, "frames", 0, "stop after this many output frames (0 waits for the script)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runSession(ctx context.Context, out io.Writer, flags runFlags) error {
	if flags.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", flags.interval)
	}
	script, err := effect.ParseList(flags.selections)
	if err != nil {
		return err
	}

	opts, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if err := opts.ConfigureLogging(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.New(opts.MetricsNamespace, reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if flags.metricsAddr != "" {
		srv := serveMetrics(flags.metricsAddr, reg)
		defer srv.Close()
	}

	cam, err := media.NewSyntheticCamera(opts.CameraConfig())
	if err != nil {
		return err
	}
	cache := processor.NewCache(
		processor.NewEffectFactory(opts.FactoryOptions()),
		processor.WithCreateHook(func(id effect.ID, err error) {
			rec.Created(id)
		}),
	)
	m, err := lifecycle.NewManager(cam, cache,
		lifecycle.WithMetrics(rec),
		lifecycle.WithLogger(logrus.WithField("component", "lifecycle")),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputs := make(chan media.Stream, 16)
	m.SetOutputCallback(func(s media.Stream) {
		select {
		case outputs <- s:
		case <-ctx.Done():
		}
	})

	var counted atomic.Int64
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		countFrames(ctx, outputs, &counted, flags.frames, cancel)
	}()

	if err := m.Start(ctx); err != nil {
		cancel()
		<-consumed
		return err
	}

	played := playScript(ctx, m, script, flags.interval)
	if flags.frames <= 0 && played {
		cancel()
	}
	<-ctx.Done()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer closeCancel()
	snap := m.Snapshot()
	report, _ := m.Close(closeCtx)
	<-consumed

	printReport(out, snap, counted.Load(), report)
	return nil
}

// playScript applies each selection after interval. It reports whether the
// whole script ran.
func playScript(ctx context.Context, m *lifecycle.Manager, script []effect.ID, interval time.Duration) bool {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; i <= len(script); i++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
		if i == len(script) {
			break
		}

		target, err := m.SelectEffect(ctx, script[i])
		fields := logrus.Fields{
			"function":  "playScript",
			"step":      i + 1,
			"requested": script[i].String(),
			"target":    target.String(),
		}
		switch {
		case err == nil:
			logrus.WithFields(fields).Info("Selection applied")
		case errors.Is(err, lifecycle.ErrClosed), errors.Is(err, context.Canceled):
			return false
		default:
			logrus.WithFields(fields).WithError(err).Warn("Selection failed, showing raw stream")
		}
	}
	return true
}

// countFrames drains whichever stream is currently shown and calls stop
// once limit frames have been seen. A limit of zero never stops.
func countFrames(ctx context.Context, outputs <-chan media.Stream, counted *atomic.Int64, limit int64, stop func()) {
	var frames <-chan *video.VideoFrame
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-outputs:
			frames = nil
			if fs, ok := s.(media.FrameStream); ok {
				frames = fs.Frames()
			}
		case _, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			if n := counted.Add(1); limit > 0 && n == limit {
				stop()
			}
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"addr":     addr,
				"error":    err.Error(),
			}).Error("Metrics server stopped")
		}
	}()
	return srv
}

func printReport(out io.Writer, snap lifecycle.Snapshot, frames int64, report reaper.Report) {
	fmt.Fprintf(out, "final effect:     %s\n", snap.Effect)
	fmt.Fprintf(out, "requests:         %d\n", snap.Sequence)
	fmt.Fprintf(out, "frames shown:     %d\n", frames)
	fmt.Fprintf(out, "tracks stopped:   %d\n", report.TracksStopped)
	fmt.Fprintf(out, "handles released: %d\n", report.HandlesReleased)
	fmt.Fprintf(out, "teardown errors:  %d\n", len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(out, "  %s %s: %v\n", f.Step, f.Target, f.Err)
	}
}
