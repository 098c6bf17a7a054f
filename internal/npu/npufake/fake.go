// Package npufake provides scriptable npu.Backend and npu.Device
// implementations for tests.
package npufake

import (
	"sync"

	"codeberg.org/mutker/npumon/internal/npu"
)

// Backend is an in-memory npu.Backend.
type Backend struct {
	Devices     []npu.Device
	InitErr     error
	ListErr     error
	ShutdownErr error

	mu            sync.Mutex
	initCalls     int
	shutdownCalls int
}

func (*Backend) Name() string { return "fake" }

func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initCalls++
	return b.InitErr
}

func (b *Backend) ListDevices() ([]npu.Device, error) {
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	return b.Devices, nil
}

func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownCalls++
	return b.ShutdownErr
}

// InitCalls returns how often Init was called.
func (b *Backend) InitCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initCalls
}

// ShutdownCalls returns how often Shutdown was called.
func (b *Backend) ShutdownCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdownCalls
}

// Device is an npu.Device returning fixed readings. FailOn makes the
// temperature read of the n-th call (0-based) fail with the mapped error,
// which lets tests break one device on one tick.
type Device struct {
	Info        npu.DeviceInfo
	InfoErr     error
	Temperature npu.Temperature
	TempErr     error
	Power       float64
	PowerErr    error
	Usage       []float64
	UsageErr    error
	FailOn      map[int]error

	mu        sync.Mutex
	tempCalls int
}

// NewDevice returns a healthy device with len(usage) processing elements.
func NewDevice(usage ...float64) *Device {
	return &Device{
		Info: npu.DeviceInfo{
			Name:            "fake",
			Arch:            "rngd",
			CoreNum:         len(usage),
			FirmwareVersion: "1.0.0",
			PertVersion:     "1.0.0",
		},
		Temperature: npu.Temperature{Ambient: 35, SocPeak: 50},
		Power:       40,
		Usage:       usage,
	}
}

func (d *Device) DeviceInfo() (npu.DeviceInfo, error) {
	return d.Info, d.InfoErr
}

func (d *Device) PowerConsumption() (float64, error) {
	return d.Power, d.PowerErr
}

func (d *Device) DeviceTemperature() (npu.Temperature, error) {
	d.mu.Lock()
	call := d.tempCalls
	d.tempCalls++
	d.mu.Unlock()

	if err, ok := d.FailOn[call]; ok {
		return npu.Temperature{}, err
	}

	return d.Temperature, d.TempErr
}

func (d *Device) CoreUtilization() ([]npu.PEUtilization, error) {
	if d.UsageErr != nil {
		return nil, d.UsageErr
	}

	usage := make([]npu.PEUtilization, len(d.Usage))
	for i, u := range d.Usage {
		usage[i] = npu.PEUtilization{Core: i, UsagePercentage: u}
	}

	return usage, nil
}
