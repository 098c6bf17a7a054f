package sampler

import (
	"fmt"

	"codeberg.org/mutker/npumon/internal/errors"
)

const (
	ErrMetricRead = errors.ErrMetricRead

	ErrInvalidTemperature = errors.ErrorCode("sampler_invalid_temperature")
	ErrInvalidPower       = errors.ErrorCode("sampler_invalid_power")
	ErrInvalidCoreCount   = errors.ErrorCode("sampler_invalid_core_count")
	ErrShortUtilization   = errors.ErrorCode("sampler_short_utilization")
	ErrInvalidUtilization = errors.ErrorCode("sampler_invalid_utilization")
)

// ReadError identifies the device and metric a failed read belongs to.
type ReadError struct {
	Device int
	Metric string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("device %d: %s: %v", e.Device, e.Metric, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
