package sampler_test

import (
	"fmt"
	"math"
	"testing"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/npu"
	"codeberg.org/mutker/npumon/internal/npu/npufake"
	"codeberg.org/mutker/npumon/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handle(index int, d *npufake.Device) npu.Handle {
	return npu.Handle{Index: index, Info: d.Info, Device: d}
}

func TestSampleAveragesCores(t *testing.T) {
	d := npufake.NewDevice(10, 20, 30, 40)
	d.Temperature = npu.Temperature{Ambient: 36.5, SocPeak: 61.25}
	d.Power = 42.1

	got, err := sampler.New(nil).Sample(handle(0, d))
	require.NoError(t, err)

	assert.InDelta(t, 25.0, got.AvgCoreUtilizationPercent, 1e-9)
	assert.InDelta(t, 36.5, got.AmbientTemperature, 1e-9)
	assert.InDelta(t, 61.25, got.SocPeakTemperature, 1e-9)
	assert.InDelta(t, 42.1, got.PowerWatts, 1e-9)
}

func TestSampleUsesReportedCoreCount(t *testing.T) {
	d := npufake.NewDevice(10, 20, 90, 90)
	d.Info.CoreNum = 2

	got, err := sampler.New(nil).Sample(handle(0, d))
	require.NoError(t, err)
	assert.InDelta(t, 15.0, got.AvgCoreUtilizationPercent, 1e-9)
}

func TestSampleSingleCore(t *testing.T) {
	got, err := sampler.New(nil).Sample(handle(0, npufake.NewDevice(73)))
	require.NoError(t, err)
	assert.InDelta(t, 73.0, got.AvgCoreUtilizationPercent, 1e-9)
}

func TestSampleErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *npufake.Device)
		code   errors.ErrorCode
	}{
		{
			name:   "temperature read fails",
			mutate: func(d *npufake.Device) { d.TempErr = fmt.Errorf("sensor busy") },
			code:   npu.ErrTemperatureReadFailed,
		},
		{
			name:   "NaN temperature",
			mutate: func(d *npufake.Device) { d.Temperature.Ambient = math.NaN() },
			code:   sampler.ErrInvalidTemperature,
		},
		{
			name:   "negative peak temperature",
			mutate: func(d *npufake.Device) { d.Temperature.SocPeak = -1 },
			code:   sampler.ErrInvalidTemperature,
		},
		{
			name:   "power read fails",
			mutate: func(d *npufake.Device) { d.PowerErr = fmt.Errorf("no sensor") },
			code:   npu.ErrPowerReadFailed,
		},
		{
			name:   "infinite power",
			mutate: func(d *npufake.Device) { d.Power = math.Inf(1) },
			code:   sampler.ErrInvalidPower,
		},
		{
			name:   "negative power",
			mutate: func(d *npufake.Device) { d.Power = -3 },
			code:   sampler.ErrInvalidPower,
		},
		{
			name:   "zero cores",
			mutate: func(d *npufake.Device) { d.Info.CoreNum = 0 },
			code:   sampler.ErrInvalidCoreCount,
		},
		{
			name:   "utilization read fails",
			mutate: func(d *npufake.Device) { d.UsageErr = fmt.Errorf("timeout") },
			code:   npu.ErrUtilizationReadFailed,
		},
		{
			name:   "fewer entries than cores",
			mutate: func(d *npufake.Device) { d.Info.CoreNum = 8 },
			code:   sampler.ErrShortUtilization,
		},
		{
			name:   "utilization above 100",
			mutate: func(d *npufake.Device) { d.Usage[1] = 101 },
			code:   sampler.ErrInvalidUtilization,
		},
		{
			name:   "NaN utilization",
			mutate: func(d *npufake.Device) { d.Usage[0] = math.NaN() },
			code:   sampler.ErrInvalidUtilization,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := npufake.NewDevice(10, 20, 30, 40)
			tt.mutate(d)

			_, err := sampler.New(nil).Sample(handle(3, d))
			require.Error(t, err)

			assert.True(t, errors.HasCode(err, sampler.ErrMetricRead))
			assert.True(t, errors.HasCode(err, tt.code), "missing %s in %v", tt.code, err)

			var readErr *sampler.ReadError
			require.ErrorAs(t, err, &readErr)
			assert.Equal(t, 3, readErr.Device)
		})
	}
}
