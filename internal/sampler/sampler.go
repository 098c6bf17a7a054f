// Package sampler turns the raw readings of one device into a Sample.
package sampler

import (
	"fmt"
	"math"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/logger"
	"codeberg.org/mutker/npumon/internal/npu"
	"codeberg.org/mutker/npumon/internal/telemetry"
)

const (
	metricTemperature = "temperature"
	metricPower       = "power"
	metricUtilization = "utilization"

	maxUtilization = 100
)

// Sampler reads one Sample per call. It keeps no state between calls.
type Sampler struct {
	logger logger.Logger
}

func New(log logger.Logger) *Sampler {
	if log == nil {
		log = logger.Nop()
	}

	return &Sampler{logger: log}
}

// Sample reads temperature, power and processing-element utilization of
// the device. Any failed or malformed reading fails the whole sample with
// an ErrMetricRead error carrying the device index.
func (s *Sampler) Sample(h npu.Handle) (telemetry.Sample, error) {
	temp, err := h.Device.DeviceTemperature()
	if err != nil {
		return telemetry.Sample{}, readError(h.Index, metricTemperature, errors.New().Wrap(npu.ErrTemperatureReadFailed, err))
	}
	if err := validateTemperature(temp); err != nil {
		return telemetry.Sample{}, readError(h.Index, metricTemperature, err)
	}

	power, err := h.Device.PowerConsumption()
	if err != nil {
		return telemetry.Sample{}, readError(h.Index, metricPower, errors.New().Wrap(npu.ErrPowerReadFailed, err))
	}
	if !isFinite(power) || power < 0 {
		return telemetry.Sample{}, readError(h.Index, metricPower,
			errors.New().WithData(ErrInvalidPower, formatValue(power)))
	}

	avg, err := s.averageUtilization(h)
	if err != nil {
		return telemetry.Sample{}, readError(h.Index, metricUtilization, err)
	}

	s.logger.Debug().
		Int("device", h.Index).
		Float64("ambient", temp.Ambient).
		Float64("soc_peak", temp.SocPeak).
		Float64("power", power).
		Float64("utilization", avg).
		Msg("Device sampled")

	return telemetry.Sample{
		AmbientTemperature:        temp.Ambient,
		SocPeakTemperature:        temp.SocPeak,
		PowerWatts:                power,
		AvgCoreUtilizationPercent: avg,
	}, nil
}

// averageUtilization averages the first CoreNum entries reported by the
// device. Extra entries are ignored.
func (*Sampler) averageUtilization(h npu.Handle) (float64, error) {
	errFactory := errors.New()

	cores := h.Info.CoreNum
	if cores <= 0 {
		return 0, errFactory.WithData(ErrInvalidCoreCount, cores)
	}

	usage, err := h.Device.CoreUtilization()
	if err != nil {
		return 0, errFactory.Wrap(npu.ErrUtilizationReadFailed, err)
	}
	if len(usage) < cores {
		return 0, errFactory.WithData(ErrShortUtilization,
			fmt.Sprintf("%d entries for %d cores", len(usage), cores))
	}

	var sum float64
	for _, pe := range usage[:cores] {
		u := pe.UsagePercentage
		if !isFinite(u) || u < 0 || u > maxUtilization {
			return 0, errFactory.WithData(ErrInvalidUtilization,
				fmt.Sprintf("core %d: %s", pe.Core, formatValue(u)))
		}
		sum += u
	}

	return sum / float64(cores), nil
}

func validateTemperature(t npu.Temperature) error {
	for _, v := range []float64{t.Ambient, t.SocPeak} {
		if !isFinite(v) || v < 0 {
			return errors.New().WithData(ErrInvalidTemperature, formatValue(v))
		}
	}

	return nil
}

func readError(device int, metric string, err error) error {
	return errors.New().Wrap(ErrMetricRead, &ReadError{Device: device, Metric: metric, Err: err})
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatValue(v float64) string {
	return fmt.Sprintf("%g", v)
}
