package metrics

import "time"

// Collector receives the collector's self-instrumentation events.
type Collector interface {
	TickCompleted(d time.Duration)
	RecordWritten()
	MetricReadFailed(device int)
	SinkWriteFailed()
	Close() error
}
