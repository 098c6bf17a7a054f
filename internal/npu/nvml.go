package npu

import (
	"sync"

	"codeberg.org/mutker/npumon/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const milliWattsToWatts = 1000

// nvmlLibrary abstracts the NVML entry points for testing
type nvmlLibrary interface {
	Init() nvml.Return
	Shutdown() nvml.Return
	DeviceGetCount() (int, nvml.Return)
	DeviceGetHandleByIndex(index int) (nvmlDevice, nvml.Return)
	SystemGetDriverVersion() (string, nvml.Return)
}

// nvmlDevice is the subset of nvml.Device the backend reads
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetArchitecture() (nvml.DeviceArchitecture, nvml.Return)
	GetVbiosVersion() (string, nvml.Return)
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
}

type systemNVML struct{}

func (systemNVML) Init() nvml.Return     { return nvml.Init() }
func (systemNVML) Shutdown() nvml.Return { return nvml.Shutdown() }

func (systemNVML) DeviceGetCount() (int, nvml.Return) { return nvml.DeviceGetCount() }

func (systemNVML) DeviceGetHandleByIndex(index int) (nvmlDevice, nvml.Return) {
	return nvml.DeviceGetHandleByIndex(index)
}

func (systemNVML) SystemGetDriverVersion() (string, nvml.Return) {
	return nvml.SystemGetDriverVersion()
}

// NVMLBackend reads NVIDIA devices through NVML. NVML exposes one die
// temperature sensor and one aggregate utilization figure per device, so
// the die temperature is reported for both the ambient and the peak
// reading and every device reports a single processing element.
type NVMLBackend struct {
	lib           nvmlLibrary
	driverVersion string
	initialized   bool
	mu            sync.Mutex
}

// NewNVMLBackend returns a backend bound to the system NVML library.
func NewNVMLBackend() *NVMLBackend {
	return &NVMLBackend{lib: systemNVML{}}
}

func (*NVMLBackend) Name() string {
	return "nvml"
}

func (b *NVMLBackend) Init() error {
	errFactory := errors.New()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	if ret := b.lib.Init(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	version, ret := b.lib.SystemGetDriverVersion()
	if !IsNVMLSuccess(ret) {
		version = "unknown"
	}
	b.driverVersion = version
	b.initialized = true

	return nil
}

func (b *NVMLBackend) ListDevices() ([]Device, error) {
	errFactory := errors.New()
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil, errFactory.New(ErrNotInitialized)
	}

	count, ret := b.lib.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceCount, newNVMLError(ret))
	}

	devices := make([]Device, 0, count)
	for i := 0; i < count; i++ {
		handle, ret := b.lib.DeviceGetHandleByIndex(i)
		if !IsNVMLSuccess(ret) {
			return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret)).WithData(i)
		}
		devices = append(devices, &nvmlNPU{device: handle, driverVersion: b.driverVersion})
	}

	return devices, nil
}

func (b *NVMLBackend) Shutdown() error {
	errFactory := errors.New()
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return nil
	}

	if ret := b.lib.Shutdown(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}
	b.initialized = false

	return nil
}

type nvmlNPU struct {
	device        nvmlDevice
	driverVersion string
}

func (d *nvmlNPU) DeviceInfo() (DeviceInfo, error) {
	errFactory := errors.New()

	name, ret := d.device.GetName()
	if !IsNVMLSuccess(ret) {
		return DeviceInfo{}, errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	arch, ret := d.device.GetArchitecture()
	if !IsNVMLSuccess(ret) {
		return DeviceInfo{}, errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	vbios, ret := d.device.GetVbiosVersion()
	if !IsNVMLSuccess(ret) {
		vbios = "unknown"
	}

	return DeviceInfo{
		Name:            name,
		Arch:            archName(arch),
		CoreNum:         1,
		FirmwareVersion: vbios,
		PertVersion:     d.driverVersion,
	}, nil
}

func (d *nvmlNPU) PowerConsumption() (float64, error) {
	milliWatts, ret := d.device.GetPowerUsage()
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(ErrPowerReadFailed, newNVMLError(ret))
	}

	return float64(milliWatts) / milliWattsToWatts, nil
}

func (d *nvmlNPU) DeviceTemperature() (Temperature, error) {
	temp, ret := d.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return Temperature{}, errors.New().Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	return Temperature{Ambient: float64(temp), SocPeak: float64(temp)}, nil
}

func (d *nvmlNPU) CoreUtilization() ([]PEUtilization, error) {
	rates, ret := d.device.GetUtilizationRates()
	if !IsNVMLSuccess(ret) {
		return nil, errors.New().Wrap(ErrUtilizationReadFailed, newNVMLError(ret))
	}

	return []PEUtilization{{Core: 0, UsagePercentage: float64(rates.Gpu)}}, nil
}

func archName(arch nvml.DeviceArchitecture) string {
	switch arch {
	case nvml.DEVICE_ARCH_KEPLER:
		return "kepler"
	case nvml.DEVICE_ARCH_MAXWELL:
		return "maxwell"
	case nvml.DEVICE_ARCH_PASCAL:
		return "pascal"
	case nvml.DEVICE_ARCH_VOLTA:
		return "volta"
	case nvml.DEVICE_ARCH_TURING:
		return "turing"
	case nvml.DEVICE_ARCH_AMPERE:
		return "ampere"
	case nvml.DEVICE_ARCH_ADA:
		return "ada"
	case nvml.DEVICE_ARCH_HOPPER:
		return "hopper"
	default:
		return "unknown"
	}
}
