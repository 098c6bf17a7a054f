package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"codeberg.org/mutker/npumon/internal/metrics"
)

const bannerWidth = 50

// Recorder writes records to the console and to a Sink. It is the only
// writer of both, so console lines and sink rows never interleave.
type Recorder struct {
	console io.Writer
	sink    Sink
	logger  logger.Logger
	metrics metrics.Collector
	mu      sync.Mutex
}

func NewRecorder(console io.Writer, sink Sink, log logger.Logger, m metrics.Collector) *Recorder {
	if m == nil {
		m = metrics.Nop()
	}

	return &Recorder{
		console: console,
		sink:    sink,
		logger:  log,
		metrics: m,
	}
}

// Record prints the sample and appends it to the sink. A sink failure is
// logged and returned, but the console line has been written by then.
func (r *Recorder) Record(ctx context.Context, ts time.Time, deviceIndex int, sample Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("[%s] Device #%d  Ambient Temperature: %0.2f  SoC Peak Temperature: %0.2f  "+
		"Power Consumption: %0.2f  Average PE Utilization: %0.2f\n",
		ts.Format(TimestampLayout), deviceIndex,
		sample.AmbientTemperature, sample.SocPeakTemperature,
		sample.PowerWatts, sample.AvgCoreUtilizationPercent)

	record := Record{Timestamp: ts, DeviceIndex: deviceIndex, Sample: sample}
	if err := r.sink.Write(ctx, record); err != nil {
		r.metrics.SinkWriteFailed()

		var appErr errors.Error
		if !errors.As(err, &appErr) {
			appErr = errors.New().Wrap(ErrSinkWrite, err)
		}
		r.logger.ErrorWithCode(appErr).
			Int("device", deviceIndex).
			Str("sink", r.sink.Name()).
			Msg("Record not saved")
		r.printf("  ! Device #%d: record not saved: %v\n", deviceIndex, err)

		return appErr
	}

	r.metrics.RecordWritten()

	return nil
}

// Skipped prints an inline warning for a device whose sample failed.
func (r *Recorder) Skipped(deviceIndex int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("  ! Device #%d: sample skipped: %v\n", deviceIndex, err)
}

// Banner starts a tick's block of console output.
func (r *Recorder) Banner(ts time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("\n%s\nTimestamp: %s\n", strings.Repeat("=", bannerWidth), ts.Format(TimestampLayout))
}

// Printf writes a free-form console line.
func (r *Recorder) Printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf(format, args...)
}

// Sink returns the sink the recorder appends to.
func (r *Recorder) Sink() Sink {
	return r.sink
}

func (r *Recorder) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(r.console, format, args...); err != nil {
		r.logger.Debug().Err(err).Msg("Console write failed")
	}
}
