package npu_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/npumon/internal/errors"
	"codeberg.org/mutker/npumon/internal/npu"
	"codeberg.org/mutker/npumon/internal/npu/npufake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerate(t *testing.T) {
	first := npufake.NewDevice(10, 20)
	second := npufake.NewDevice(30, 40, 50, 60)
	backend := &npufake.Backend{Devices: []npu.Device{first, second}}

	set, err := npu.Enumerate(backend)
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, "fake", set.Backend())

	handles := set.Handles()
	require.Len(t, handles, 2)
	assert.Equal(t, 0, handles[0].Index)
	assert.Equal(t, 2, handles[0].Info.CoreNum)
	assert.Same(t, first, handles[0].Device)
	assert.Equal(t, 1, handles[1].Index)
	assert.Equal(t, 4, handles[1].Info.CoreNum)

	require.NoError(t, set.Close())
	assert.Equal(t, 1, backend.ShutdownCalls())
}

func TestEnumerateHandlesAreACopy(t *testing.T) {
	set, err := npu.Enumerate(&npufake.Backend{Devices: []npu.Device{npufake.NewDevice(1)}})
	require.NoError(t, err)

	handles := set.Handles()
	handles[0].Index = 42
	assert.Equal(t, 0, set.Handles()[0].Index)
}

func TestEnumerateZeroDevices(t *testing.T) {
	backend := &npufake.Backend{}

	_, err := npu.Enumerate(backend)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrDeviceEnumeration))
	assert.True(t, errors.HasCode(err, npu.ErrNoDevices))
	assert.Equal(t, 1, backend.ShutdownCalls())
}

func TestEnumerateZeroDevicesShutdownFails(t *testing.T) {
	backend := &npufake.Backend{ShutdownErr: fmt.Errorf("library busy")}

	_, err := npu.Enumerate(backend)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrDeviceEnumeration))
	assert.True(t, errors.HasCode(err, npu.ErrNoDevices))
	assert.Contains(t, err.Error(), "shutdown: library busy")
}

func TestEnumerateUnreachable(t *testing.T) {
	backend := &npufake.Backend{InitErr: fmt.Errorf("driver not loaded")}

	_, err := npu.Enumerate(backend)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrDeviceEnumeration))
	assert.Contains(t, err.Error(), "driver not loaded")
	assert.Equal(t, 0, backend.ShutdownCalls())
}

func TestEnumerateListFailure(t *testing.T) {
	backend := &npufake.Backend{ListErr: fmt.Errorf("ioctl failed")}

	_, err := npu.Enumerate(backend)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrDeviceEnumeration))
	assert.True(t, errors.HasCode(err, npu.ErrDeviceCount))
}

func TestEnumerateDeviceInfoFailure(t *testing.T) {
	broken := npufake.NewDevice(1)
	broken.InfoErr = fmt.Errorf("firmware busy")
	backend := &npufake.Backend{Devices: []npu.Device{npufake.NewDevice(1), broken}}

	_, err := npu.Enumerate(backend)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, npu.ErrDeviceInfoFailed))
	assert.Contains(t, err.Error(), "device 1")
}

func TestNewBackend(t *testing.T) {
	b, err := npu.NewBackend(npu.BackendSimulator, npu.SimulatorConfig{Devices: 1, Cores: 8})
	require.NoError(t, err)
	assert.Equal(t, "sim", b.Name())

	b, err = npu.NewBackend(npu.BackendNVML, npu.SimulatorConfig{})
	require.NoError(t, err)
	assert.Equal(t, "nvml", b.Name())

	_, err = npu.NewBackend("rocm", npu.SimulatorConfig{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, npu.ErrUnknownBackend))
}
