package npu_test

import (
	"testing"

	"codeberg.org/mutker/npumon/internal/npu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator(t *testing.T) {
	sim := npu.NewSimulator(npu.SimulatorConfig{Devices: 3, Cores: 8, Seed: 7})

	set, err := npu.Enumerate(sim)
	require.NoError(t, err)
	defer set.Close()

	require.Equal(t, 3, set.Len())
	for _, h := range set.Handles() {
		assert.Equal(t, 8, h.Info.CoreNum)
		assert.Equal(t, "rngd", h.Info.Arch)

		temp, err := h.Device.DeviceTemperature()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, temp.Ambient, 30.0)
		assert.Greater(t, temp.SocPeak, temp.Ambient)

		power, err := h.Device.PowerConsumption()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, power, 35.0)

		usage, err := h.Device.CoreUtilization()
		require.NoError(t, err)
		require.Len(t, usage, 8)
		for _, pe := range usage {
			assert.GreaterOrEqual(t, pe.UsagePercentage, 0.0)
			assert.Less(t, pe.UsagePercentage, 100.0)
		}
	}
}

func TestSimulatorIsReproducible(t *testing.T) {
	read := func() float64 {
		sim := npu.NewSimulator(npu.SimulatorConfig{Devices: 1, Cores: 4, Seed: 42})
		require.NoError(t, sim.Init())
		devices, err := sim.ListDevices()
		require.NoError(t, err)
		power, err := devices[0].PowerConsumption()
		require.NoError(t, err)
		return power
	}

	assert.Equal(t, read(), read())
}

func TestSimulatorNotInitialized(t *testing.T) {
	sim := npu.NewSimulator(npu.SimulatorConfig{Devices: 1, Cores: 1})
	_, err := sim.ListDevices()
	assert.Error(t, err)
}
