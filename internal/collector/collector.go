// Package collector runs the fixed-interval collection loop: enumerate the
// devices once, then sample and record every device on each tick until the
// context is cancelled.
package collector

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"codeberg.org/mutker/npumon/internal/clock"
	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"codeberg.org/mutker/npumon/internal/metrics"
	"codeberg.org/mutker/npumon/internal/npu"
	"codeberg.org/mutker/npumon/internal/sampler"
	"codeberg.org/mutker/npumon/internal/telemetry"
)

const (
	DefaultInterval = 2 * time.Second

	consoleTimeLayout = "2006-01-02 15:04:05"
)

// SinkFactory creates the sink for a run.
type SinkFactory func(cfg telemetry.Config, log logger.Logger) (telemetry.Sink, error)

// Config controls a Loop.
type Config struct {
	Interval time.Duration
	Parallel bool
	Sink     telemetry.Config
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New().WithData(ErrInvalidInterval, c.Interval.String())
	}

	return nil
}

// Option customizes a Loop.
type Option func(*Loop)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clock.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithConsole sets where the human-readable view is written.
func WithConsole(w io.Writer) Option {
	return func(l *Loop) { l.console = w }
}

func WithLogger(log logger.Logger) Option {
	return func(l *Loop) { l.logger = log }
}

func WithMetrics(m metrics.Collector) Option {
	return func(l *Loop) { l.metrics = m }
}

func WithSinkFactory(f SinkFactory) Option {
	return func(l *Loop) { l.newSink = f }
}

// Loop owns the device set, the sampler, the recorder and the sink for
// one run.
type Loop struct {
	cfg     Config
	backend npu.Backend
	clock   clock.Clock
	console io.Writer
	logger  logger.Logger
	metrics metrics.Collector
	newSink SinkFactory
	sampler *sampler.Sampler

	mu       sync.Mutex
	state    State
	devices  *npu.DeviceSet
	recorder *telemetry.Recorder
	lastTick time.Time
}

func New(cfg Config, backend npu.Backend, opts ...Option) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loop{
		cfg:     cfg,
		backend: backend,
		clock:   clock.Real(),
		console: os.Stdout,
		logger:  logger.Default(),
		metrics: metrics.Nop(),
		newSink: telemetry.NewSink,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.sampler = sampler.New(l.logger)

	return l, nil
}

// State returns the current lifecycle phase.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()

	if prev != s {
		l.logger.Debug().Str("from", prev.String()).Str("to", s.String()).Msg("State changed")
	}
}

// Run enumerates the devices, creates the sink and samples every interval
// until ctx is cancelled. Enumeration and sink errors are returned before
// any tick runs; cancellation is a clean stop and returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return errors.New().New(ErrAlreadyStarted)
	}
	l.mu.Unlock()

	if err := l.start(); err != nil {
		l.setState(StateStopped)
		return err
	}
	defer l.teardown()

	l.logger.Info().
		Int("devices", l.devices.Len()).
		Str("backend", l.devices.Backend()).
		Str("sink", l.recorder.Sink().Name()).
		Dur("interval", l.cfg.Interval).
		Bool("parallel", l.cfg.Parallel).
		Msg("Collection started")

	for ctx.Err() == nil {
		l.tick(ctx)

		l.setState(StateSleeping)
		select {
		case <-ctx.Done():
		case <-l.clock.After(l.cfg.Interval):
		}
	}

	l.setState(StateStopped)
	l.recorder.Printf("\nMonitoring stopped at %s\n", l.clock.Now().Format(consoleTimeLayout))
	l.logger.Info().Msg("Collection stopped")

	return nil
}

func (l *Loop) start() error {
	l.setState(StateEnumerating)

	devices, err := npu.Enumerate(l.backend)
	if err != nil {
		return err
	}

	started := l.clock.Now()
	sinkCfg := l.cfg.Sink
	sinkCfg.Started = started

	sink, err := l.newSink(sinkCfg, l.logger)
	if err != nil {
		if closeErr := devices.Close(); closeErr != nil {
			l.logger.Warn().Err(closeErr).Msg("Backend shutdown failed")
		}
		var appErr errors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return errors.New().Wrap(ErrSinkInit, err)
	}

	l.devices = devices
	l.recorder = telemetry.NewRecorder(l.console, sink, l.logger, l.metrics)
	l.setState(StateReady)

	l.printSummary()
	l.recorder.Printf("Monitoring started at %s\n", started.Format(consoleTimeLayout))
	l.recorder.Printf("Data is being saved to: %s\n", sink.Location())

	return nil
}

func (l *Loop) printSummary() {
	l.recorder.Printf("Devices count: %d\n", l.devices.Len())
	for _, h := range l.devices.Handles() {
		l.recorder.Printf("Device Info #%d\n", h.Index)
		l.recorder.Printf("\t\tDevice Arch: %s\n", h.Info.Arch)
		l.recorder.Printf("\t\tDevice Cores: %d\n", h.Info.CoreNum)
		l.recorder.Printf("\t\tDevice Firmware Version: %s\n", h.Info.FirmwareVersion)
		l.recorder.Printf("\t\tDevice Pert Version: %s\n", h.Info.PertVersion)
	}
}

func (l *Loop) teardown() {
	if err := l.recorder.Sink().Close(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to close sink")
	}
	if err := l.devices.Close(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to shut down backend")
	}
}

type result struct {
	sample telemetry.Sample
	err    error
}

// tick samples every device and records the results under one timestamp.
// Writes use a context detached from ctx so a tick that has started always
// finishes its rows.
func (l *Loop) tick(ctx context.Context) {
	start := l.clock.Now()
	ts := l.nextTimestamp(start)

	l.setState(StateSampling)
	l.recorder.Banner(ts)

	handles := l.devices.Handles()
	results := l.sampleAll(handles)

	l.setState(StateRecording)
	writeCtx := context.WithoutCancel(ctx)

	var skipped, failed int
	for i, h := range handles {
		res := results[i]
		if res.err != nil {
			skipped++
			l.metrics.MetricReadFailed(h.Index)
			l.logger.Warn().Err(res.err).Int("device", h.Index).Msg("Sample skipped")
			l.recorder.Skipped(h.Index, res.err)
			continue
		}

		if err := l.recorder.Record(writeCtx, ts, h.Index, res.sample); err != nil {
			failed++
		}
	}

	elapsed := l.clock.Now().Sub(start)
	l.metrics.TickCompleted(elapsed)
	l.logger.Debug().
		Time("timestamp", ts).
		Int("skipped", skipped).
		Int("write_failures", failed).
		Dur("elapsed", elapsed).
		Msg("Tick completed")
}

func (l *Loop) sampleAll(handles []npu.Handle) []result {
	results := make([]result, len(handles))

	if !l.cfg.Parallel {
		for i, h := range handles {
			results[i].sample, results[i].err = l.sampler.Sample(h)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h npu.Handle) {
			defer wg.Done()
			results[i].sample, results[i].err = l.sampler.Sample(h)
		}(i, h)
	}
	wg.Wait()

	return results
}

// nextTimestamp returns now at millisecond precision, moved past the
// previous tick's timestamp if the clock has not advanced.
func (l *Loop) nextTimestamp(now time.Time) time.Time {
	ts := now.Truncate(time.Millisecond)
	if !l.lastTick.IsZero() && !ts.After(l.lastTick) {
		ts = l.lastTick.Add(time.Millisecond)
	}
	l.lastTick = ts

	return ts
}
