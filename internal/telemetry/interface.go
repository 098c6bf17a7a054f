package telemetry

import (
	"context"
	"time"
)

// TimestampLayout is the timestamp format used on the console and in the
// CSV sink.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Sample is the set of readings taken from one device in one tick.
type Sample struct {
	AmbientTemperature        float64
	SocPeakTemperature        float64
	PowerWatts                float64
	AvgCoreUtilizationPercent float64
}

// Record is a Sample tagged with its tick timestamp and device index, the
// unit written to a Sink.
type Record struct {
	Timestamp   time.Time
	DeviceIndex int
	Sample      Sample
}

// Sink is a durable, append-only destination for records. Its header is
// written by the constructor, before the first Write.
type Sink interface {
	// Write appends one record. A record is either fully persisted or
	// not persisted at all.
	Write(ctx context.Context, record Record) error
	Name() string
	Location() string
	Close() error
}
